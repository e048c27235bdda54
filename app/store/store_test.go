package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/cvedit/app/enums"
	"github.com/umputun/cvedit/app/resume"
	"github.com/umputun/cvedit/app/store/mocks"
	"github.com/umputun/cvedit/app/store/persistence"
)

func fallbackDoc() resume.Document {
	return resume.Document{
		ContactInfo: []string{"5551234"},
		EducationData: []resume.Education{
			{Degree: "BSc", School: "MIT", Year: "2010"},
			{Degree: "MSc", School: "ETH", Year: "2012"},
		},
		SkillsData:     []string{"go", "sql"},
		LanguagesData:  []string{"English", "German"},
		ExperienceData: []resume.Experience{{JobTitle: "Engineer", Company: "Acme", Duration: "5y", Description: "x"}},
		ProfileText:    "profile",
		ReferenceText:  "reference",
	}
}

func newTestDB(t *testing.T) *persistence.SQLiteStore {
	t.Helper()
	db, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func staticSource(doc resume.Document) *mocks.SourceMock {
	return &mocks.SourceMock{FetchFunc: func(context.Context) (resume.Document, error) { return doc, nil }}
}

func failingSource() *mocks.SourceMock {
	return &mocks.SourceMock{FetchFunc: func(context.Context) (resume.Document, error) {
		return resume.Document{}, errors.New("fetch error: unexpected status 404")
	}}
}

func collectingNotifier() *mocks.NotifierMock {
	return &mocks.NotifierMock{NotifyFunc: func(context.Context, enums.Event, string) {}}
}

var yes = ConfirmFunc(func(string) bool { return true })

func TestStore_LoadFromStorage(t *testing.T) {
	db := newTestDB(t)
	stored := fallbackDoc()
	stored.SkillsData = []string{"stored skill"}
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, db.Put(context.Background(), DefaultKey, data))

	src := staticSource(fallbackDoc())
	s := New(Params{Persistence: db, Source: src})
	rec := s.Load(context.Background())
	assert.Equal(t, stored, rec.Document())
	assert.Empty(t, src.FetchCalls(), "fallback not touched")
}

func TestStore_LoadFallbackPersists(t *testing.T) {
	db := newTestDB(t)
	s := New(Params{Persistence: db, Source: staticSource(fallbackDoc())})
	rec := s.Load(context.Background())
	assert.Equal(t, fallbackDoc(), rec.Document())

	data, err := db.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	var doc resume.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, fallbackDoc(), doc)
}

func TestStore_LoadCorruptStorage(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Put(context.Background(), DefaultKey, []byte("{not json")))

	src := staticSource(fallbackDoc())
	s := New(Params{Persistence: db, Source: src})
	rec := s.Load(context.Background())
	assert.Equal(t, fallbackDoc(), rec.Document())
	assert.Len(t, src.FetchCalls(), 1)
}

func TestStore_LoadInvalidStoredDocument(t *testing.T) {
	tbl := []struct {
		name  string
		value string
	}{
		{"null", "null"},
		{"array", `["a","b"]`},
		{"wrong list type", `{"contactInfo":"5551234"}`},
		{"wrong text type", `{"profileText":["x"]}`},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			require.NoError(t, db.Put(context.Background(), DefaultKey, []byte(tt.value)))

			src := staticSource(fallbackDoc())
			s := New(Params{Persistence: db, Source: src})
			rec := s.Load(context.Background())
			assert.Equal(t, fallbackDoc(), rec.Document())
			assert.Len(t, src.FetchCalls(), 1)

			_, err := s.read(context.Background())
			require.NoError(t, err, "fallback persisted over the invalid value")
		})
	}

	t.Run("read reports storage error", func(t *testing.T) {
		db := newTestDB(t)
		require.NoError(t, db.Put(context.Background(), DefaultKey, []byte("null")))
		s := New(Params{Persistence: db, Source: staticSource(fallbackDoc())})
		_, err := s.read(context.Background())
		assert.ErrorIs(t, err, ErrStorageRead)
	})
}

func TestStore_LoadStorageFailure(t *testing.T) {
	p := &mocks.PersistenceMock{
		GetFunc: func(context.Context, string) ([]byte, error) { return nil, errors.New("disk on fire") },
		PutFunc: func(context.Context, string, []byte) error { return nil },
	}
	s := New(Params{Persistence: p, Source: staticSource(fallbackDoc())})
	rec := s.Load(context.Background())
	assert.Equal(t, fallbackDoc(), rec.Document())
	assert.Len(t, p.PutCalls(), 1)
}

func TestStore_LoadFetchFailureYieldsEmpty(t *testing.T) {
	db := newTestDB(t)
	notif := collectingNotifier()
	s := New(Params{Persistence: db, Source: failingSource(), Notifier: notif})
	rec := s.Load(context.Background())

	data, err := json.Marshal(rec.Document())
	require.NoError(t, err)
	assert.JSONEq(t, `{"contactInfo":[],"educationData":[],"skillsData":[],"languagesData":[],
		"experienceData":[],"profileText":"","referenceText":""}`, string(data))

	require.Len(t, notif.NotifyCalls(), 1)
	assert.Equal(t, enums.EventFetchFailed, notif.NotifyCalls()[0].Event)

	_, err = db.Get(context.Background(), DefaultKey)
	assert.ErrorIs(t, err, persistence.ErrNotFound, "empty record is not persisted")
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := New(Params{Persistence: db, Source: staticSource(fallbackDoc())})
	s.Load(ctx)

	status, err := s.Update(ctx, func(rec *resume.Record) error {
		if _, err := rec.Add(resume.Skill{Value: "k8s"}); err != nil {
			return err
		}
		return rec.SetText(enums.SectionProfile, "updated")
	})
	require.NoError(t, err)
	assert.Equal(t, enums.SaveStatusSaved, status)
	require.NoError(t, s.Save(ctx))

	fresh := New(Params{Persistence: db, Source: failingSource()})
	rec := fresh.Load(ctx)
	assert.Equal(t, s.Document(), rec.Document())
	assert.Equal(t, []string{"go", "sql", "k8s"}, rec.Document().SkillsData)
}

func TestStore_UpdateFailureChangesNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := New(Params{Persistence: db, Source: staticSource(fallbackDoc())})
	s.Load(ctx)
	before, err := db.Get(ctx, DefaultKey)
	require.NoError(t, err)

	status, err := s.Update(ctx, func(rec *resume.Record) error {
		require.NoError(t, rec.SetText(enums.SectionProfile, "partial change"))
		_, err := rec.Add(resume.Contact{Value: "abc"})
		return err
	})
	var verr *resume.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, enums.SaveStatusNone, status)
	assert.Equal(t, fallbackDoc(), s.Document(), "partial change discarded")

	after, err := db.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStore_PersistFailure(t *testing.T) {
	p := &mocks.PersistenceMock{
		GetFunc: func(context.Context, string) ([]byte, error) { return nil, persistence.ErrNotFound },
		PutFunc: func(context.Context, string, []byte) error { return errors.New("quota exceeded") },
	}
	notif := collectingNotifier()
	ctx := context.Background()
	s := New(Params{Persistence: p, Source: staticSource(fallbackDoc()), Notifier: notif})
	s.Load(ctx)
	assert.Equal(t, fallbackDoc(), s.Document(), "fetched document kept even if not persisted")

	status, err := s.Update(ctx, func(rec *resume.Record) error {
		_, err := rec.Add(resume.Language{Value: "French"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, enums.SaveStatusFailed, status)
	assert.Equal(t, []string{"English", "German", "French"}, s.Document().LanguagesData, "memory stays authoritative")

	err = s.Save(ctx)
	require.ErrorIs(t, err, ErrPersist)

	events := notif.NotifyCalls()
	require.NotEmpty(t, events)
	assert.Equal(t, enums.EventPersistFailed, events[len(events)-1].Event)
}

func TestStore_Reset(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	notif := collectingNotifier()
	s := New(Params{Persistence: db, Source: staticSource(fallbackDoc()), Notifier: notif})
	s.Load(ctx)

	_, err := s.Update(ctx, func(rec *resume.Record) error {
		for _, e := range rec.Entries(enums.SectionSkill) {
			if err := rec.Remove(enums.SectionSkill, e.ID); err != nil {
				return err
			}
		}
		return rec.SetText(enums.SectionReference, "changed")
	})
	require.NoError(t, err)
	assert.NotEqual(t, fallbackDoc(), s.Document())

	t.Run("declined", func(t *testing.T) {
		var prompt string
		rec, err := s.Reset(ctx, ConfirmFunc(func(p string) bool { prompt = p; return false }))
		require.ErrorIs(t, err, ErrResetDeclined)
		assert.Nil(t, rec)
		assert.Equal(t, "Are you sure you want to reset all changes?", prompt)
		assert.Empty(t, s.Document().SkillsData)
	})

	t.Run("no confirmer", func(t *testing.T) {
		_, err := s.Reset(ctx, nil)
		require.ErrorIs(t, err, ErrResetDeclined)
	})

	t.Run("confirmed", func(t *testing.T) {
		rec, err := s.Reset(ctx, yes)
		require.NoError(t, err)
		assert.Equal(t, fallbackDoc(), rec.Document())
		assert.Equal(t, fallbackDoc(), s.Document())

		fresh := New(Params{Persistence: db, Source: failingSource()})
		assert.Equal(t, fallbackDoc(), fresh.Load(ctx).Document(), "subsequent loads return the fallback content")

		calls := notif.NotifyCalls()
		require.NotEmpty(t, calls)
		assert.Equal(t, enums.EventReset, calls[len(calls)-1].Event)
	})
}

func TestStore_ResetFetchFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	src := staticSource(fallbackDoc())
	s := New(Params{Persistence: db, Source: src})
	s.Load(ctx)
	_, err := s.Update(ctx, func(rec *resume.Record) error { return rec.SetText(enums.SectionProfile, "mine") })
	require.NoError(t, err)

	src.FetchFunc = failingSource().FetchFunc
	rec, err := s.Reset(ctx, yes)
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, "mine", s.Document().ProfileText, "state unchanged")
}

func TestStore_Replace(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := New(Params{Persistence: db, Source: failingSource()})
	s.Load(ctx)

	status := s.Replace(ctx, fallbackDoc())
	assert.Equal(t, enums.SaveStatusSaved, status)
	assert.Equal(t, fallbackDoc(), s.Document())

	var ids []string
	s.View(func(rec *resume.Record) {
		for _, e := range rec.Entries(enums.SectionEducation) {
			ids = append(ids, e.ID)
		}
	})
	assert.Len(t, ids, 2)
}

func TestStore_CustomKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := New(Params{Persistence: db, Source: staticSource(fallbackDoc()), Key: "other"})
	s.Load(ctx)

	_, err := db.Get(ctx, "other")
	require.NoError(t, err)
	_, err = db.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := New(Params{Persistence: db, Source: failingSource()})
	s.Load(ctx)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, func(rec *resume.Record) error {
				_, err := rec.Add(resume.Contact{Value: "123"})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, s.Document().ContactInfo, 20)

	fresh := New(Params{Persistence: db, Source: failingSource()})
	assert.Len(t, fresh.Load(ctx).Document().ContactInfo, 20)
}
