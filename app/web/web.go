// Package web implements the web server of the resume editor. Pages are rendered on the server,
// the browser is a thin htmx client swapping section and entry fragments.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/cvedit/app/editor"
	"github.com/umputun/cvedit/app/enums"
	"github.com/umputun/cvedit/app/resume"
	"github.com/umputun/cvedit/app/snapshot"
	"github.com/umputun/cvedit/app/store"
)

//go:embed templates/*.html templates/partials/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Editor renders and edits resume sections
type Editor interface {
	Sections() []editor.SectionView
	Section(kind enums.Section) (editor.SectionView, error)
	Entry(kind enums.Section, id string) (editor.EntryView, error)
	Add(ctx context.Context, kind enums.Section, value string) (editor.SectionView, enums.SaveStatus, error)
	BeginEdit(kind enums.Section, id string) (editor.EntryView, error)
	Confirm(ctx context.Context, kind enums.Section, id string, values map[string]string) (editor.EntryView, enums.SaveStatus, error)
	Cancel(kind enums.Section, id string) (editor.EntryView, error)
	SaveEntry(ctx context.Context, kind enums.Section, id string, values map[string]string) (editor.EntryView, enums.SaveStatus, error)
	Remove(ctx context.Context, kind enums.Section, id string) ([]editor.SectionView, enums.SaveStatus, error)
	SetText(ctx context.Context, kind enums.Section, html string) (enums.SaveStatus, error)
	Reset(ctx context.Context, confirm store.Confirmer) ([]editor.SectionView, error)
	Refresh() []editor.SectionView
}

// Resume gives whole-document access for the json api and the save-all control
type Resume interface {
	Document() resume.Document
	Replace(ctx context.Context, doc resume.Document) enums.SaveStatus
	Save(ctx context.Context) error
}

// Snapshots serves snapshot history, optional
type Snapshots interface {
	Take(ctx context.Context) (info snapshot.Info, created bool, err error)
	List(ctx context.Context) ([]snapshot.Info, error)
	Restore(ctx context.Context, id int64) (enums.SaveStatus, error)
}

// Server represents the web server
type Server struct {
	editor         Editor
	resume         Resume
	snapshots      Snapshots
	templates      map[string]*template.Template
	baseURL        string // base URL path for reverse proxy (e.g., /cv), empty for root
	title          string
	version        string
	passwordHash   string        // bcrypt hash for auth, empty disables auth
	authSecret     []byte        // signing key of session tokens
	loginTTL       time.Duration // session TTL
	savedDelay     time.Duration // how long the save acknowledgment stays
	csrfProtection *http.CrossOriginProtection
	loginLimiter   *limiter.Limiter
}

// Config holds server configuration
type Config struct {
	Editor       Editor
	Resume       Resume
	Snapshots    Snapshots // nil disables snapshot endpoints
	BaseURL      string    // base URL path for reverse proxy (e.g., /cv), empty for root
	Title        string    // page title
	Version      string
	PasswordHash string        // bcrypt hash for auth (empty to disable)
	AuthSecret   string        // session token signing key, derived from the password hash if empty
	LoginTTL     time.Duration // session TTL, defaults to 24h if not set
	SavedDelay   time.Duration // save acknowledgment duration, defaults to 2s
}

// TemplateData holds data for page templates
type TemplateData struct {
	Title            string
	Sections         []editor.SectionView
	Theme            enums.Theme
	BaseURL          string
	AuthEnabled      bool
	SnapshotsEnabled bool
	Version          string
	CurrentYear      int
	ResetPrompt      string
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Editor == nil || cfg.Resume == nil {
		return nil, fmt.Errorf("web server initialization failed: editor and resume are required")
	}

	s := &Server{
		editor:         cfg.Editor,
		resume:         cfg.Resume,
		snapshots:      cfg.Snapshots,
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		title:          cfg.Title,
		version:        cfg.Version,
		passwordHash:   cfg.PasswordHash,
		loginTTL:       cfg.LoginTTL,
		savedDelay:     cfg.SavedDelay,
		csrfProtection: http.NewCrossOriginProtection(),
		loginLimiter:   newLoginLimiter(),
	}
	if s.loginTTL == 0 {
		s.loginTTL = 24 * time.Hour
	}
	if s.savedDelay == 0 {
		s.savedDelay = 2 * time.Second
	}
	if s.title == "" {
		s.title = "Resume"
	}
	s.authSecret = makeAuthSecret(cfg.AuthSecret, cfg.PasswordHash)

	templates, err := s.parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w", err)
	}
	s.templates = templates
	return s, nil
}

// Run starts the web server and blocks until ctx is done
func (s *Server) Run(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// handler returns the http.Handler with base URL wrapping applied
func (s *Server) handler() http.Handler {
	routes := s.routes()
	if s.baseURL == "" {
		return routes
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.baseURL, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.baseURL+"/", http.StatusMovedPermanently)
	})
	mux.Handle(s.baseURL+"/", http.StripPrefix(s.baseURL, routes))
	return mux
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("cvedit", "umputun", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(1024*1024), // fits the largest accepted document
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	// must be set before any routes are defined
	if s.passwordHash != "" {
		log.Printf("[INFO] authentication enabled for web UI")
		router.Use(s.authMiddleware)
		router.HandleFunc("GET /login", s.handleLoginForm)
		router.With(s.csrfProtection.Handler, tollbooth.HTTPMiddleware(s.loginLimiter)).HandleFunc("POST /login", s.handleLogin)
		router.HandleFunc("GET /logout", s.handleLogout)
	}

	router.HandleFunc("GET /{$}", s.handlePage)

	// htmx endpoints
	router.Mount("/api").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.Use(s.csrfProtection.Handler)

		api.HandleFunc("GET /sections", s.handleSections)
		api.HandleFunc("GET /sections/{section}", s.handleSection)
		api.HandleFunc("POST /sections/{section}/entries", s.handleAdd)
		api.HandleFunc("GET /sections/{section}/entries/{id}", s.handleEntry)
		api.HandleFunc("POST /sections/{section}/entries/{id}/edit", s.handleEdit)
		api.HandleFunc("POST /sections/{section}/entries/{id}/confirm", s.handleConfirm)
		api.HandleFunc("POST /sections/{section}/entries/{id}/cancel", s.handleCancel)
		api.HandleFunc("POST /sections/{section}/entries/{id}/save", s.handleSave)
		api.HandleFunc("DELETE /sections/{section}/entries/{id}", s.handleRemove)
		api.HandleFunc("POST /text/{section}", s.handleText)
		api.HandleFunc("POST /save", s.handleSaveAll)
		api.HandleFunc("POST /reset", s.handleReset)
		api.HandleFunc("POST /theme", s.handleThemeToggle)
		if s.snapshots != nil {
			api.HandleFunc("GET /snapshots", s.handleSnapshots)
			api.HandleFunc("POST /snapshots", s.handleTakeSnapshot)
			api.HandleFunc("POST /snapshots/{id}/restore", s.handleRestoreSnapshot)
		}
	})

	// JSON API for programmatic access
	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.HandleFunc("GET /resume", s.handleAPIGetResume)
		api.With(s.csrfProtection.Handler).HandleFunc("PUT /resume", s.handleAPIPutResume)
		api.HandleFunc("GET /schema", s.handleAPISchema)
		if s.snapshots != nil {
			api.HandleFunc("GET /snapshots", s.handleAPISnapshots)
		}
	})

	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[ERROR] failed to create static file system: %v", err)
		router.Handle("GET /static/", http.FileServer(http.FS(staticFS)))
	} else {
		router.HandleFiles("/static/", http.FS(fsys))
	}

	return router
}

// render renders a template with status code. The output is buffered, a template failure
// results in a clean 500 response.
func (s *Server) render(w http.ResponseWriter, status int, page, tmplName string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Printf("[WARN] template %s not found", page)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, tmplName, data); err != nil {
		log.Printf("[WARN] failed to execute template: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// parseTemplates parses all templates
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)

	funcMap := template.FuncMap{
		"url":   s.url,
		"delay": func() string { return fmt.Sprintf("%dms", s.savedDelay.Milliseconds()) },
		"humanTime": func(t time.Time) string {
			if t.IsZero() {
				return "Never"
			}
			return t.Format("Jan 2, 15:04:05")
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templatesFS,
		"templates/base.html", "templates/resume.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}
	templates["base.html"] = base

	// partials separately for htmx requests
	partials, err := template.New("section.html").Funcs(funcMap).ParseFS(templatesFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}
	templates["partials"] = partials

	// login is standalone, doesn't use base
	login, err := template.New("login.html").Funcs(funcMap).ParseFS(templatesFS, "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse login template: %w", err)
	}
	templates["login"] = login

	return templates, nil
}

// trigger sets HX-Trigger header with given events, htmx dispatches them on the client
func (s *Server) trigger(w http.ResponseWriter, events map[string]any) {
	if len(events) == 0 {
		return
	}
	data, err := json.Marshal(events)
	if err != nil {
		log.Printf("[WARN] failed to marshal hx-trigger events: %v", err)
		return
	}
	w.Header().Set("HX-Trigger", string(data))
}

func (s *Server) getTheme(r *http.Request) enums.Theme {
	cookie, err := r.Cookie("theme")
	if err != nil {
		return enums.ThemeLight
	}
	theme, err := enums.ParseTheme(cookie.Value)
	if err != nil {
		log.Printf("[WARN] invalid theme %q: %v", cookie.Value, err)
		return enums.ThemeLight
	}
	return theme
}

// url prepends the base URL to a path for reverse proxy support
func (s *Server) url(path string) string {
	return s.baseURL + path
}

// cookiePath returns the cookie path with base URL support
func (s *Server) cookiePath() string {
	if s.baseURL == "" {
		return "/"
	}
	return s.baseURL + "/"
}

func newLoginLimiter() *limiter.Limiter {
	lmt := tollbooth.NewLimiter(5, nil)
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})
	lmt.SetMessage("Too many login attempts")
	return lmt
}

// shortVersion extracts a short version string from full version,
// for version like "v1.7.0-abc1234-20241225" returns "v1.7.0"
func shortVersion(fullVer string) string {
	if fullVer == "" || fullVer == "unknown" {
		return fullVer
	}
	if idx := strings.Index(fullVer, "-"); idx > 0 {
		return fullVer[:idx]
	}
	return fullVer
}
