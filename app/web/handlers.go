package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/cvedit/app/editor"
	"github.com/umputun/cvedit/app/enums"
	"github.com/umputun/cvedit/app/resume"
	"github.com/umputun/cvedit/app/snapshot"
	"github.com/umputun/cvedit/app/store"
)

// toast messages, shown for two seconds by the client
const (
	msgSaved       = "Data saved successfully!"
	msgSaveFailed  = "Error saving data!"
	msgReset       = "Data reset successfully!"
	msgResetFailed = "Error resetting data!"
)

// toast is the payload of the toast event
type toast struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

// handlePage renders the full editor page
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	data := TemplateData{
		Title:            s.title,
		Sections:         s.editor.Sections(),
		Theme:            s.getTheme(r),
		BaseURL:          s.baseURL,
		AuthEnabled:      s.passwordHash != "",
		SnapshotsEnabled: s.snapshots != nil,
		Version:          shortVersion(s.version),
		CurrentYear:      time.Now().Year(),
		ResetPrompt:      store.ResetPrompt,
	}
	s.render(w, http.StatusOK, "base.html", "base.html", data)
}

// handleSections renders all sections, used to resync the page
func (s *Server) handleSections(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, "partials", "sections", s.editor.Sections())
}

// handleSection renders a single section
func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.sectionParam(w, r)
	if !ok {
		return
	}
	view, err := s.editor.Section(kind)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.render(w, http.StatusOK, "partials", "section", view)
}

// handleAdd appends an entry from the add input and renders the section
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.sectionParam(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	view, status, err := s.editor.Add(r.Context(), kind, r.FormValue("value"))
	var valErr *resume.ValidationError
	if errors.As(err, &valErr) {
		s.trigger(w, map[string]any{"validation": valErr.Message})
		s.render(w, http.StatusUnprocessableEntity, "partials", "section", view)
		return
	}
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.trigger(w, statusEvents(status))
	s.render(w, http.StatusOK, "partials", "section", view)
}

// handleEntry renders an entry as it is, used by cancel-less refreshes and the "Saved!" revert
func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := s.entryParams(w, r)
	if !ok {
		return
	}
	view, err := s.editor.Entry(kind, id)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.render(w, http.StatusOK, "partials", "entry", view)
}

// handleEdit switches an entry to editing
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := s.entryParams(w, r)
	if !ok {
		return
	}
	view, err := s.editor.BeginEdit(kind, id)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.render(w, http.StatusOK, "partials", "entry", view)
}

// handleConfirm commits the entered values of an entry
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	s.commitEntry(w, r, false)
}

// handleSave is the durable save of an entry, the entry shows the save acknowledgment on success
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.commitEntry(w, r, true)
}

// handleCancel drops the entered values of an entry
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := s.entryParams(w, r)
	if !ok {
		return
	}
	view, err := s.editor.Cancel(kind, id)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.render(w, http.StatusOK, "partials", "entry", view)
}

// handleRemove deletes an entry and re-renders all sections
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := s.entryParams(w, r)
	if !ok {
		return
	}
	views, status, err := s.editor.Remove(r.Context(), kind, id)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.trigger(w, statusEvents(status))
	s.render(w, http.StatusOK, "partials", "sections", views)
}

// handleText commits the content of a free-text section. Nothing is rendered back,
// the editable region stays as the user typed it.
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.sectionParam(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	status, err := s.editor.SetText(r.Context(), kind, r.FormValue("html"))
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.trigger(w, statusEvents(status))
	w.WriteHeader(http.StatusNoContent)
}

// handleSaveAll writes the whole resume to storage, retries a write that failed earlier
func (s *Server) handleSaveAll(w http.ResponseWriter, r *http.Request) {
	status := enums.SaveStatusSaved
	if err := s.resume.Save(r.Context()); err != nil {
		log.Printf("[WARN] save all failed: %v", err)
		status = enums.SaveStatusFailed
	}
	s.trigger(w, statusEvents(status))
	w.WriteHeader(http.StatusNoContent)
}

// handleReset restores the fallback document. The browser asks for confirmation and sends confirm=yes,
// a request without it is declined.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	confirmed := r.FormValue("confirm") == "yes"
	views, err := s.editor.Reset(r.Context(), store.ConfirmFunc(func(string) bool { return confirmed }))
	switch {
	case errors.Is(err, store.ErrResetDeclined):
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, store.ErrPersist):
		log.Printf("[WARN] reset not persisted: %v", err)
		s.trigger(w, map[string]any{"toast": toast{Message: msgResetFailed, Level: "error"}})
	case err != nil:
		log.Printf("[WARN] reset failed: %v", err)
		s.trigger(w, map[string]any{"toast": toast{Message: msgResetFailed, Level: "error"}})
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		s.trigger(w, map[string]any{"toast": toast{Message: msgReset, Level: "success"}})
	}
	s.render(w, http.StatusOK, "partials", "sections", views)
}

// handleThemeToggle toggles the theme cookie
func (s *Server) handleThemeToggle(w http.ResponseWriter, r *http.Request) {
	next := enums.ThemeDark
	if s.getTheme(r) == enums.ThemeDark {
		next = enums.ThemeLight
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "theme",
		Value:    next.String(),
		Path:     s.cookiePath(),
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("HX-Refresh", "true")
	w.WriteHeader(http.StatusOK)
}

// handleSnapshots renders snapshot history
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := s.snapshots.List(r.Context())
	if err != nil {
		log.Printf("[WARN] failed to list snapshots: %v", err)
		http.Error(w, "Failed to list snapshots", http.StatusInternalServerError)
		return
	}
	s.render(w, http.StatusOK, "partials", "snapshots", list)
}

// handleTakeSnapshot takes a snapshot on demand and renders history
func (s *Server) handleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	info, created, err := s.snapshots.Take(r.Context())
	if err != nil {
		log.Printf("[WARN] failed to take snapshot: %v", err)
		s.trigger(w, map[string]any{"toast": toast{Message: "Error taking snapshot!", Level: "error"}})
		w.WriteHeader(http.StatusNoContent)
		return
	}
	msg := fmt.Sprintf("Snapshot #%d taken", info.ID)
	if !created {
		msg = "No changes since the last snapshot"
	}
	s.trigger(w, map[string]any{"toast": toast{Message: msg, Level: "success"}})
	s.handleSnapshots(w, r)
}

// handleRestoreSnapshot replaces the resume with a snapshot, confirmed like reset
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid snapshot id", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	if r.FormValue("confirm") != "yes" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	status, err := s.snapshots.Restore(r.Context(), id)
	if errors.Is(err, snapshot.ErrNotFound) {
		http.Error(w, "Snapshot not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[WARN] failed to restore snapshot %d: %v", id, err)
		http.Error(w, "Failed to restore snapshot", http.StatusInternalServerError)
		return
	}
	s.trigger(w, statusEvents(status))
	s.render(w, http.StatusOK, "partials", "sections", s.editor.Refresh())
}

// commitEntry runs confirm or durable save of an entry. Validation failure keeps the entry
// in editing and raises the validation alert.
func (s *Server) commitEntry(w http.ResponseWriter, r *http.Request, durable bool) {
	kind, id, ok := s.entryParams(w, r)
	if !ok {
		return
	}
	values, err := formValues(r, kind)
	if err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	var view editor.EntryView
	var status enums.SaveStatus
	if durable {
		view, status, err = s.editor.SaveEntry(r.Context(), kind, id, values)
	} else {
		view, status, err = s.editor.Confirm(r.Context(), kind, id, values)
	}

	var valErr *resume.ValidationError
	if errors.As(err, &valErr) {
		s.trigger(w, map[string]any{"validation": valErr.Message})
		s.render(w, http.StatusUnprocessableEntity, "partials", "entry", view)
		return
	}
	if err != nil {
		s.renderError(w, err)
		return
	}
	if !durable {
		view.SaveStatus = enums.SaveStatusNone // acknowledgment belongs to the save button only
	}
	s.trigger(w, statusEvents(status))
	s.render(w, http.StatusOK, "partials", "entry", view)
}

// sectionParam parses the section path segment, unknown section is reported as 404
func (s *Server) sectionParam(w http.ResponseWriter, r *http.Request) (enums.Section, bool) {
	kind, err := enums.ParseSection(r.PathValue("section"))
	if err != nil {
		http.Error(w, "Unknown section", http.StatusNotFound)
		return enums.Section{}, false
	}
	return kind, true
}

func (s *Server) entryParams(w http.ResponseWriter, r *http.Request) (enums.Section, string, bool) {
	kind, ok := s.sectionParam(w, r)
	if !ok {
		return enums.Section{}, "", false
	}
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Missing entry id", http.StatusBadRequest)
		return enums.Section{}, "", false
	}
	return kind, id, true
}

// renderError maps editor errors to http responses
func (s *Server) renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resume.ErrNotFound):
		http.Error(w, "Entry not found", http.StatusNotFound)
	case errors.Is(err, editor.ErrUnsupported):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("[WARN] request failed: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// formValues collects the submitted fields of the section, nil if none submitted
func formValues(r *http.Request, kind enums.Section) (map[string]string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	sec, err := resume.Lookup(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup section: %w", err)
	}
	var res map[string]string
	for _, name := range sec.FieldNames() {
		if _, ok := r.Form[name]; !ok {
			continue
		}
		if res == nil {
			res = make(map[string]string)
		}
		res[name] = r.FormValue(name)
	}
	return res, nil
}

// statusEvents makes the toast event of a save status
func statusEvents(status enums.SaveStatus) map[string]any {
	switch status {
	case enums.SaveStatusSaved:
		return map[string]any{"toast": toast{Message: msgSaved, Level: "success"}}
	case enums.SaveStatusFailed:
		return map[string]any{"toast": toast{Message: msgSaveFailed, Level: "error"}}
	}
	return nil
}
