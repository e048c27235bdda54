package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"

	"github.com/umputun/cvedit/app/enums"
	"github.com/umputun/cvedit/app/resume"
	"github.com/umputun/cvedit/app/snapshot"
)

// APIPutResponse is the JSON response for PUT /api/v1/resume
type APIPutResponse struct {
	Status string `json:"status"` // saved or failed
}

// APISchemaError is the JSON response for a document rejected by the schema
type APISchemaError struct {
	Error  string              `json:"error"`
	Fields []resume.FieldError `json:"fields"`
}

// handleAPIGetResume returns the current resume document
func (s *Server) handleAPIGetResume(w http.ResponseWriter, _ *http.Request) {
	rest.RenderJSON(w, s.resume.Document())
}

// handleAPIPutResume replaces the resume with a schema-valid document and persists it
func (s *Server) handleAPIPutResume(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var raw any
	if err = json.Unmarshal(body, &raw); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err = resume.ValidateDocument(raw); err != nil {
		var serr *resume.SchemaError
		if errors.As(err, &serr) {
			s.writeJSON(w, http.StatusUnprocessableEntity, APISchemaError{Error: "document doesn't match resume schema", Fields: serr.Errors})
			return
		}
		log.Printf("[WARN] failed to validate document: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to validate document")
		return
	}

	var doc resume.Document
	if err = json.Unmarshal(body, &doc); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid document")
		return
	}

	status := s.resume.Replace(r.Context(), doc)
	s.editor.Refresh() // drafts refer to replaced entries
	if status == enums.SaveStatusFailed {
		s.writeJSON(w, http.StatusInternalServerError, APIPutResponse{Status: status.String()})
		return
	}
	rest.RenderJSON(w, APIPutResponse{Status: status.String()})
}

// handleAPISchema returns the JSON schema of the resume document
func (s *Server) handleAPISchema(w http.ResponseWriter, _ *http.Request) {
	rest.RenderJSON(w, resume.Schema())
}

// handleAPISnapshots returns snapshot history, newest first
func (s *Server) handleAPISnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := s.snapshots.List(r.Context())
	if err != nil {
		log.Printf("[WARN] failed to list snapshots: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	if list == nil {
		list = []snapshot.Info{}
	}
	rest.RenderJSON(w, list)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
