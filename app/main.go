package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/joho/godotenv"
	"github.com/umputun/go-flags"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/cvedit/app/editor"
	"github.com/umputun/cvedit/app/enums"
	"github.com/umputun/cvedit/app/notify"
	"github.com/umputun/cvedit/app/snapshot"
	"github.com/umputun/cvedit/app/store"
	"github.com/umputun/cvedit/app/store/persistence"
	"github.com/umputun/cvedit/app/web"
)

var opts struct {
	Listen   string `short:"l" long:"listen" env:"CVEDIT_LISTEN" default:"127.0.0.1:8080" description:"web server listen address"`
	Fallback string `short:"f" long:"fallback" env:"CVEDIT_FALLBACK" description:"fallback resume location, url or file (bundled document if empty)"`
	BaseURL  string `long:"base-url" env:"CVEDIT_BASE_URL" description:"base URL path for reverse proxy (e.g., /cv)"`
	Title    string `long:"title" env:"CVEDIT_TITLE" default:"Resume" description:"page title"`
	Dbg      bool   `long:"dbg" env:"CVEDIT_DEBUG" description:"debug mode"`

	Fetch struct {
		Timeout  time.Duration `long:"timeout" env:"TIMEOUT" default:"10s" description:"fallback fetch timeout"`
		Attempts int           `long:"attempts" env:"ATTEMPTS" default:"3" description:"fallback fetch attempts"`
		Delay    time.Duration `long:"delay" env:"DELAY" default:"500ms" description:"initial delay between attempts"`
	} `group:"fetch" namespace:"fetch" env-namespace:"CVEDIT_FETCH"`

	Store struct {
		DB    string `long:"db" env:"DB" default:"cvedit.db" description:"sqlite database file"`
		PgURL string `long:"pg-url" env:"PG_URL" description:"postgres connection url, overrides sqlite"`
		Key   string `long:"key" env:"KEY" default:"resumeData" description:"storage key of the resume"`
	} `group:"store" namespace:"store" env-namespace:"CVEDIT_STORE"`

	Snapshot struct {
		Schedule string `long:"schedule" env:"SCHEDULE" default:"@daily" description:"snapshot cron schedule, empty to disable"`
		Keep     int    `long:"keep" env:"KEEP" default:"30" description:"snapshots to keep, 0 keeps all"`
	} `group:"snapshot" namespace:"snapshot" env-namespace:"CVEDIT_SNAPSHOT"`

	Notify struct {
		Destinations []string      `long:"dest" env:"DEST" env-delim:"," description:"notification destinations, webhook urls or slack:channel"`
		SlackToken   string        `long:"slack-token" env:"SLACK_TOKEN" description:"slack token for slack destinations"`
		Headers      []string      `long:"header" env:"HEADER" env-delim:"," description:"webhook headers, Name:Value"`
		Events       []string      `long:"event" env:"EVENT" env-delim:"," description:"events to notify (reset, persistfailed, fetchfailed), all if empty"`
		Timeout      time.Duration `long:"timeout" env:"TIMEOUT" default:"10s" description:"notification timeout"`
	} `group:"notify" namespace:"notify" env-namespace:"CVEDIT_NOTIFY"`

	Auth struct {
		PasswordHash string        `long:"password-hash" env:"PASSWORD_HASH" description:"bcrypt hash of the web UI password, empty disables auth"`
		Secret       string        `long:"secret" env:"SECRET" description:"session signing secret, derived from the password hash if empty"`
		TTL          time.Duration `long:"ttl" env:"TTL" default:"24h" description:"session lifetime"`
	} `group:"auth" namespace:"auth" env-namespace:"CVEDIT_AUTH"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"filename" env:"FILENAME" default:"cvedit.log" description:"file name to log to"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"maximum size in megabytes of the log file before it gets rotated"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"maximum number of old log files to retain"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"maximum number of days to retain old log files"`
		EnabledCompress bool   `long:"enabled-compress" env:"ENABLED_COMPRESS" description:"compress rotated log files"`
	} `group:"log" namespace:"log" env-namespace:"CVEDIT_LOG"`
}

var revision = "unknown"

// backend is the storage of the resume and its snapshots
type backend interface {
	store.Persistence
	snapshot.Storage
	io.Closer
}

func main() {
	fmt.Printf("cvedit %s\n", revision)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("failed to load .env: %v\n", err)
	}

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals(cancel) // handle SIGQUIT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	db, err := makeBackend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("[WARN] failed to close storage: %v", err)
		}
	}()

	notifier, err := makeNotifier()
	if err != nil {
		return err
	}
	defer notifier.Wait()

	src := &store.Fallback{Location: opts.Fallback, Timeout: opts.Fetch.Timeout, Attempts: opts.Fetch.Attempts,
		Delay: opts.Fetch.Delay, Client: &http.Client{}}
	st := store.New(store.Params{Persistence: db, Source: src, Notifier: notifier, Key: opts.Store.Key})
	log.Printf("[INFO] fallback source: %s, notifications: %s", src, notifier)

	// the listener starts only after the initial load completed
	st.Load(ctx)

	snaps, err := snapshot.New(snapshot.Params{Storage: db, Resume: st, Key: opts.Store.Key,
		Schedule: opts.Snapshot.Schedule, Keep: opts.Snapshot.Keep})
	if err != nil {
		return err
	}

	srv, err := web.New(web.Config{
		Editor:       editor.New(st),
		Resume:       st,
		Snapshots:    snaps,
		BaseURL:      validateBaseURL(opts.BaseURL),
		Title:        opts.Title,
		Version:      revision,
		PasswordHash: opts.Auth.PasswordHash,
		AuthSecret:   opts.Auth.Secret,
		LoginTTL:     opts.Auth.TTL,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, opts.Listen) })
	g.Go(func() error { return snaps.Run(gctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("cvedit failed: %w", err)
	}
	log.Printf("[INFO] cvedit stopped")
	return nil
}

// makeBackend opens postgres if url is set, sqlite otherwise
func makeBackend(ctx context.Context) (backend, error) {
	if opts.Store.PgURL != "" {
		log.Printf("[INFO] using postgres storage")
		db, err := persistence.NewPostgresStore(ctx, opts.Store.PgURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return db, nil
	}
	log.Printf("[INFO] using sqlite storage %s", opts.Store.DB)
	db, err := persistence.NewSQLiteStore(opts.Store.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite storage %s: %w", opts.Store.DB, err)
	}
	return db, nil
}

func makeNotifier() (*notify.Service, error) {
	events := make([]enums.Event, 0, len(opts.Notify.Events))
	for _, name := range opts.Notify.Events {
		ev, err := enums.ParseEvent(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("invalid notification event %q: %w", name, err)
		}
		events = append(events, ev)
	}

	return notify.NewService(notify.Params{
		Destinations:   opts.Notify.Destinations,
		SlackToken:     opts.Notify.SlackToken,
		WebhookHeaders: opts.Notify.Headers,
		Events:         events,
		Timeout:        opts.Notify.Timeout,
		Prefix:         "cvedit@" + makeHostName(),
	}), nil
}

func makeHostName() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// validateBaseURL normalizes base url, "/" and "" mean root
func validateBaseURL(u string) string {
	u = strings.TrimSuffix(u, "/")
	if u != "" && !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return u
}

// setupLogs configures lgr, returns the writer of the log output
func setupLogs() io.Writer {
	var out io.Writer = os.Stdout
	if opts.Log.Enabled {
		out = &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
		}
	}

	logOpts := []log.Option{log.Msec, log.Out(out), log.Err(out)}
	if opts.Dbg {
		logOpts = append(logOpts, log.Debug, log.CallerFunc, log.CallerPkg, log.CallerFile)
	}
	log.Setup(logOpts...)
	return out
}

func signals(cancel context.CancelFunc) {
	// catch SIGQUIT and print stack traces
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for range sigChan {
			length := runtime.Stack(stacktrace, true)
			fmt.Println(string(stacktrace[:length]))
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT)

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-termChan
		log.Printf("[WARN] interrupt signal")
		cancel()
	}()
}
