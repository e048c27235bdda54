package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/cvedit/app/editor"
	"github.com/umputun/cvedit/app/enums"
	"github.com/umputun/cvedit/app/resume"
	"github.com/umputun/cvedit/app/store"
	"github.com/umputun/cvedit/app/store/mocks"
	"github.com/umputun/cvedit/app/store/persistence"
)

func (e *testEnv) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, http.NoBody)
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	e.srv.routes().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) entryID(t *testing.T, kind enums.Section, idx int) string {
	t.Helper()
	var id string
	e.store.View(func(rec *resume.Record) {
		entries := rec.Entries(kind)
		require.Greater(t, len(entries), idx)
		id = entries[idx].ID
	})
	return id
}

func entryURL(kind enums.Section, id, action string) string {
	res := fmt.Sprintf("/api/sections/%s/entries/%s", kind, id)
	if action != "" {
		res += "/" + action
	}
	return res
}

// hxTrigger decodes HX-Trigger header
func hxTrigger(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	hdr := rec.Header().Get("HX-Trigger")
	if hdr == "" {
		return nil
	}
	res := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(hdr), &res))
	return res
}

func toastMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	ev, ok := hxTrigger(t, rec)["toast"].(map[string]any)
	if !ok {
		return ""
	}
	return ev["message"].(string)
}

func TestServer_handleAdd(t *testing.T) {
	tbl := []struct {
		name       string
		section    string
		value      string
		wantCode   int
		wantToast  string
		validation string
		check      func(t *testing.T, doc resume.Document)
	}{
		{name: "contact numeric", section: "contact", value: "12345", wantCode: http.StatusOK, wantToast: msgSaved,
			check: func(t *testing.T, doc resume.Document) {
				assert.Equal(t, []string{"5551234", "5559876", "12345"}, doc.ContactInfo)
			}},
		{name: "contact letters", section: "contact", value: "abc", wantCode: http.StatusUnprocessableEntity,
			validation: "Please enter only numbers for contact info",
			check: func(t *testing.T, doc resume.Document) {
				assert.Equal(t, []string{"5551234", "5559876"}, doc.ContactInfo)
			}},
		{name: "contact empty", section: "contact", value: "", wantCode: http.StatusUnprocessableEntity,
			validation: "Contact info cannot be empty"},
		{name: "skill", section: "skill", value: "rust", wantCode: http.StatusOK, wantToast: msgSaved,
			check: func(t *testing.T, doc resume.Document) {
				assert.Equal(t, []string{"go", "sql", "k8s", "rust"}, doc.SkillsData)
			}},
		{name: "language empty", section: "language", value: " ", wantCode: http.StatusUnprocessableEntity,
			validation: "Language cannot be empty"},
		{name: "education blank", section: "education", wantCode: http.StatusOK, wantToast: msgSaved,
			check: func(t *testing.T, doc resume.Document) {
				require.Len(t, doc.EducationData, 2)
				assert.Equal(t, resume.Education{}, doc.EducationData[1])
			}},
		{name: "experience blank", section: "experience", wantCode: http.StatusOK, wantToast: msgSaved,
			check: func(t *testing.T, doc resume.Document) {
				require.Len(t, doc.ExperienceData, 2)
			}},
		{name: "text section", section: "profile", value: "x", wantCode: http.StatusBadRequest},
		{name: "unknown section", section: "hobby", value: "x", wantCode: http.StatusNotFound},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rec := env.do(t, "POST", "/api/sections/"+tt.section+"/entries", url.Values{"value": {tt.value}})
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantToast, toastMessage(t, rec))
			if tt.validation != "" {
				assert.Equal(t, tt.validation, hxTrigger(t, rec)["validation"])
				assert.Contains(t, rec.Body.String(), tt.validation, "message shown next to the input")
				assert.Contains(t, rec.Body.String(), `value="`+tt.value+`"`, "rejected value kept")
			}
			if tt.wantCode == http.StatusOK {
				assert.Contains(t, rec.Body.String(), `id="section-`+tt.section+`"`)
			}
			if tt.check != nil {
				tt.check(t, env.store.Document())
			}
		})
	}
}

func TestServer_EditConfirmCancel(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.entryID(t, enums.SectionSkill, 1)

	rec := env.do(t, "POST", entryURL(enums.SectionSkill, id, "edit"), url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="value" value="sql"`, "input seeded with committed value")
	assert.Contains(t, rec.Body.String(), "Confirm")

	t.Run("cancel keeps committed value", func(t *testing.T) {
		rec := env.do(t, "POST", entryURL(enums.SectionSkill, id, "cancel"), url.Values{})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "Confirm")
		assert.Contains(t, rec.Body.String(), ">sql<")
		assert.Equal(t, []string{"go", "sql", "k8s"}, env.store.Document().SkillsData)
	})

	t.Run("confirm empty rejected", func(t *testing.T) {
		env.do(t, "POST", entryURL(enums.SectionSkill, id, "edit"), url.Values{})
		rec := env.do(t, "POST", entryURL(enums.SectionSkill, id, "confirm"), url.Values{"value": {""}})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "Skill cannot be empty", hxTrigger(t, rec)["validation"])
		assert.Contains(t, rec.Body.String(), "Confirm", "entry stays in editing")
		assert.Equal(t, []string{"go", "sql", "k8s"}, env.store.Document().SkillsData)
	})

	t.Run("confirm commits", func(t *testing.T) {
		rec := env.do(t, "POST", entryURL(enums.SectionSkill, id, "confirm"), url.Values{"value": {"postgres"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), ">postgres<")
		assert.NotContains(t, rec.Body.String(), "Saved!", "acknowledgment is for save only")
		assert.Equal(t, msgSaved, toastMessage(t, rec))
		assert.Equal(t, []string{"go", "postgres", "k8s"}, env.store.Document().SkillsData)
	})

	t.Run("unknown entry", func(t *testing.T) {
		rec := env.do(t, "POST", entryURL(enums.SectionSkill, "nope", "edit"), url.Values{})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_ConfirmEducationField(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.entryID(t, enums.SectionEducation, 0)

	env.do(t, "POST", entryURL(enums.SectionEducation, id, "edit"), url.Values{})
	rec := env.do(t, "POST", entryURL(enums.SectionEducation, id, "confirm"),
		url.Values{"degree": {"BSc"}, "school": {"Stanford"}, "year": {"2010"}})
	require.Equal(t, http.StatusOK, rec.Code)

	doc := env.store.Document()
	assert.Equal(t, []resume.Education{{Degree: "BSc", School: "Stanford", Year: "2010"}}, doc.EducationData)
	want := fallbackDoc()
	want.EducationData = doc.EducationData
	assert.Equal(t, want, doc, "nothing else changed")
}

func TestServer_PartialEducationCommit(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.entryID(t, enums.SectionEducation, 0)

	rec := env.do(t, "POST", entryURL(enums.SectionEducation, id, "confirm"), url.Values{"school": {"Stanford"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []resume.Education{{Degree: "BSc", School: "Stanford", Year: "2010"}}, env.store.Document().EducationData)

	rec = env.do(t, "POST", entryURL(enums.SectionEducation, id, "save"), url.Values{"year": {"2011"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Saved!")
	assert.Equal(t, []resume.Education{{Degree: "BSc", School: "Stanford", Year: "2011"}}, env.store.Document().EducationData)
}

func TestServer_handleSave(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.entryID(t, enums.SectionContact, 0)

	t.Run("stored value re-committed", func(t *testing.T) {
		// entered but not confirmed text is ignored by save
		env.do(t, "POST", entryURL(enums.SectionContact, id, "edit"), url.Values{})
		rec := env.do(t, "POST", entryURL(enums.SectionContact, id, "save"), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Saved!")
		assert.Contains(t, body, `hx-trigger="load delay:2000ms"`)
		assert.Contains(t, body, `hx-get="`+entryURL(enums.SectionContact, id, "")+`"`)
		assert.Equal(t, msgSaved, toastMessage(t, rec))
		assert.Equal(t, []string{"5551234", "5559876"}, env.store.Document().ContactInfo)
	})

	t.Run("revert to display", func(t *testing.T) {
		rec := env.do(t, "GET", entryURL(enums.SectionContact, id, ""), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "Saved!")
		assert.Contains(t, rec.Body.String(), ">Save<")
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		rec := env.do(t, "POST", entryURL(enums.SectionContact, id, "save"), url.Values{"value": {"12a"}})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "Please enter only numbers for contact info", hxTrigger(t, rec)["validation"])
		assert.Equal(t, []string{"5551234", "5559876"}, env.store.Document().ContactInfo)
	})

	t.Run("values committed", func(t *testing.T) {
		rec := env.do(t, "POST", entryURL(enums.SectionContact, id, "save"), url.Values{"value": {"777"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Saved!")
		assert.Equal(t, []string{"777", "5559876"}, env.store.Document().ContactInfo)
	})
}

func TestServer_handleRemove(t *testing.T) {
	env := newTestEnv(t, nil)
	first, second, third := env.entryID(t, enums.SectionSkill, 0), env.entryID(t, enums.SectionSkill, 1),
		env.entryID(t, enums.SectionSkill, 2)

	rec := env.do(t, "DELETE", entryURL(enums.SectionSkill, second, ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgSaved, toastMessage(t, rec))
	body := rec.Body.String()
	assert.Contains(t, body, `id="section-contact"`, "all sections re-rendered")
	assert.Contains(t, body, `id="entry-`+third+`" data-index="1"`, "following entry shifted")
	assert.Contains(t, body, `id="entry-`+first+`" data-index="0"`)
	assert.NotContains(t, body, second)
	assert.Equal(t, []string{"go", "k8s"}, env.store.Document().SkillsData)

	rec = env.do(t, "DELETE", entryURL(enums.SectionSkill, second, ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_handleText(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/api/text/profile", url.Values{"html": {"<div>senior</div> <b>gopher</b> &amp; more"}})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, msgSaved, toastMessage(t, rec))
	assert.Equal(t, "senior gopher & more", env.store.Document().ProfileText)

	rec = env.do(t, "POST", "/api/text/reference", url.Values{"html": {""}})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.store.Document().ReferenceText)

	rec = env.do(t, "POST", "/api/text/skill", url.Values{"html": {"x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_handleReset(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "POST", "/api/sections/skill/entries", url.Values{"value": {"rust"}})
	env.do(t, "POST", "/api/text/profile", url.Values{"html": {"changed"}})

	t.Run("declined", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/reset", url.Values{})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "changed", env.store.Document().ProfileText)
	})

	t.Run("confirmed", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/reset", url.Values{"confirm": {"yes"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, msgReset, toastMessage(t, rec))
		assert.Contains(t, rec.Body.String(), "about me")
		assert.Equal(t, fallbackDoc(), env.store.Document())

		// subsequent loads return the fallback content
		fresh := store.New(store.Params{Persistence: env.db, Source: &mocks.SourceMock{}})
		assert.Equal(t, fallbackDoc(), fresh.Load(context.Background()).Document())
	})
}

func TestServer_PersistFailure(t *testing.T) {
	data := map[string][]byte{}
	failing := false
	pers := &mocks.PersistenceMock{
		GetFunc: func(_ context.Context, key string) ([]byte, error) {
			if v, ok := data[key]; ok {
				return v, nil
			}
			return nil, persistence.ErrNotFound
		},
		PutFunc: func(_ context.Context, key string, value []byte) error {
			if failing {
				return errors.New("disk full")
			}
			data[key] = value
			return nil
		},
	}
	src := &mocks.SourceMock{FetchFunc: func(context.Context) (resume.Document, error) { return fallbackDoc(), nil }}
	st := store.New(store.Params{Persistence: pers, Source: src})
	st.Load(context.Background())
	srv, err := New(Config{Editor: editor.New(st), Resume: st})
	require.NoError(t, err)
	env := &testEnv{srv: srv, store: st}

	failing = true
	rec := env.do(t, "POST", "/api/sections/skill/entries", url.Values{"value": {"rust"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgSaveFailed, toastMessage(t, rec))
	assert.Equal(t, []string{"go", "sql", "k8s", "rust"}, st.Document().SkillsData, "memory stays authoritative")

	rec = env.do(t, "POST", "/api/reset", url.Values{"confirm": {"yes"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgResetFailed, toastMessage(t, rec))
	assert.Equal(t, fallbackDoc(), st.Document())

	rec = env.do(t, "GET", "/api/snapshots", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "snapshots disabled")
}

func TestServer_handleSaveAll(t *testing.T) {
	data := map[string][]byte{}
	failing := false
	pers := &mocks.PersistenceMock{
		GetFunc: func(_ context.Context, key string) ([]byte, error) {
			if v, ok := data[key]; ok {
				return v, nil
			}
			return nil, persistence.ErrNotFound
		},
		PutFunc: func(_ context.Context, key string, value []byte) error {
			if failing {
				return errors.New("disk full")
			}
			data[key] = value
			return nil
		},
	}
	src := &mocks.SourceMock{FetchFunc: func(context.Context) (resume.Document, error) { return fallbackDoc(), nil }}
	st := store.New(store.Params{Persistence: pers, Source: src})
	st.Load(context.Background())
	srv, err := New(Config{Editor: editor.New(st), Resume: st})
	require.NoError(t, err)
	env := &testEnv{srv: srv, store: st}

	failing = true
	rec := env.do(t, "POST", "/api/sections/skill/entries", url.Values{"value": {"rust"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgSaveFailed, toastMessage(t, rec))

	t.Run("failed", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/save", url.Values{})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, msgSaveFailed, toastMessage(t, rec))
	})

	t.Run("retried", func(t *testing.T) {
		failing = false
		rec := env.do(t, "POST", "/api/save", url.Values{})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, msgSaved, toastMessage(t, rec))

		var doc resume.Document
		require.NoError(t, json.Unmarshal(data[store.DefaultKey], &doc))
		assert.Equal(t, []string{"go", "sql", "k8s", "rust"}, doc.SkillsData)
	})
}

func TestServer_handleSection(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/api/sections/experience", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Engineer")
	assert.Contains(t, rec.Body.String(), "Add Experience")

	rec = env.do(t, "GET", "/api/sections/reference", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `contenteditable="true"`)
	assert.Contains(t, rec.Body.String(), "on request")

	rec = env.do(t, "GET", "/api/sections", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, strings.Count(rec.Body.String(), `<section class="section"`))
	assert.Equal(t, 7, strings.Count(rec.Body.String(), `<details class="section-toggle" open>`), "headings collapse sections")

	rec = env.do(t, "GET", "/api/sections/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_handleThemeToggle(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/api/theme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("HX-Refresh"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "dark", cookies[0].Value)

	req := httptest.NewRequest("POST", "/api/theme", http.NoBody)
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	rec = httptest.NewRecorder()
	env.srv.routes().ServeHTTP(rec, req)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "light", cookies[0].Value)
}

func TestServer_Snapshots(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/api/snapshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No snapshots yet")

	rec = env.do(t, "POST", "/api/snapshots", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, toastMessage(t, rec), "Snapshot #")
	assert.Contains(t, rec.Body.String(), "Restore")

	rec = env.do(t, "POST", "/api/snapshots", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "No changes since the last snapshot", toastMessage(t, rec))

	list, err := env.srv.snapshots.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	restoreURL := fmt.Sprintf("/api/snapshots/%d/restore", list[0].ID)

	env.do(t, "POST", "/api/sections/language/entries", url.Values{"value": {"German"}})
	assert.Equal(t, []string{"English", "German"}, env.store.Document().LanguagesData)

	t.Run("restore needs confirmation", func(t *testing.T) {
		rec := env.do(t, "POST", restoreURL, url.Values{})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"English", "German"}, env.store.Document().LanguagesData)
	})

	t.Run("restore", func(t *testing.T) {
		rec := env.do(t, "POST", restoreURL, url.Values{"confirm": {"yes"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, msgSaved, toastMessage(t, rec))
		assert.Equal(t, fallbackDoc(), env.store.Document())
		assert.NotContains(t, rec.Body.String(), "German")
	})

	t.Run("restore unknown", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/snapshots/9999/restore", url.Values{"confirm": {"yes"}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = env.do(t, "POST", "/api/snapshots/abc/restore", url.Values{"confirm": {"yes"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFormValues(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader("school=ETH&year=2012&extra=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	values, err := formValues(req, enums.SectionEducation)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"school": "ETH", "year": "2012"}, values)

	req = httptest.NewRequest("POST", "/", http.NoBody)
	values, err = formValues(req, enums.SectionSkill)
	require.NoError(t, err)
	assert.Nil(t, values)
}

func TestStatusEvents(t *testing.T) {
	assert.Nil(t, statusEvents(enums.SaveStatusNone))
	assert.Equal(t, toast{Message: msgSaved, Level: "success"}, statusEvents(enums.SaveStatusSaved)["toast"])
	assert.Equal(t, toast{Message: msgSaveFailed, Level: "error"}, statusEvents(enums.SaveStatusFailed)["toast"])
}
