package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"gopkg.in/yaml.v3"

	"github.com/umputun/cvedit/app/resume"
)

//go:embed data/resume.json
var bundled []byte

const maxFetchSize = 1 << 20 // 1MB

// Fallback fetches the fallback document. Location is either empty (bundled document),
// a file path, a file:// url or an http(s):// url. Documents with .yml or .yaml extension
// are decoded as yaml, everything else as json.
type Fallback struct {
	Location string
	Timeout  time.Duration // per fetch, including retries
	Attempts int           // fetch attempts, at least one
	Delay    time.Duration // initial delay between attempts
	Client   *http.Client
}

// Fetch gets, decodes and validates the fallback document. All errors wrap ErrFetch.
func (f *Fallback) Fetch(ctx context.Context) (resume.Document, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	delay := f.Delay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	rptr := repeater.New(&strategy.Backoff{Repeats: max(f.Attempts, 1), Duration: delay, Factor: 2, Jitter: true})

	var data []byte
	err := rptr.Do(ctx, func() error {
		var e error
		if data, e = f.read(ctx); e != nil {
			log.Printf("[DEBUG] fallback fetch from %s failed: %v", f.String(), e)
		}
		return e
	})
	if err != nil {
		return resume.Document{}, fmt.Errorf("%w: %s: %v", ErrFetch, f.String(), err)
	}

	doc, err := decodeDocument(data, f.isYAML())
	if err != nil {
		return resume.Document{}, fmt.Errorf("%w: %s: %v", ErrFetch, f.String(), err)
	}
	log.Printf("[DEBUG] fallback document fetched from %s, %d bytes", f.String(), len(data))
	return doc, nil
}

// String returns the location for logging
func (f *Fallback) String() string {
	if f.Location == "" {
		return "bundled document"
	}
	return f.Location
}

func (f *Fallback) read(ctx context.Context) ([]byte, error) {
	switch {
	case f.Location == "":
		return bundled, nil
	case strings.HasPrefix(f.Location, "http://"), strings.HasPrefix(f.Location, "https://"):
		return f.readURL(ctx)
	default:
		return readFile(strings.TrimPrefix(f.Location, "file://"))
	}
}

func (f *Fallback) readURL(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Location, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return readLimited(resp.Body)
}

func readFile(fname string) ([]byte, error) {
	fh, err := os.Open(fname) //nolint:gosec // location is set by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open: %w", err)
	}
	defer fh.Close()
	return readLimited(fh)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFetchSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}
	if len(data) > maxFetchSize {
		return nil, fmt.Errorf("document is larger than %d bytes", maxFetchSize)
	}
	return data, nil
}

func (f *Fallback) isYAML() bool {
	p := f.Location
	if u, err := url.Parse(p); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	return ext == ".yml" || ext == ".yaml"
}

// decodeDocument checks the raw content against the resume schema and decodes it
func decodeDocument(data []byte, isYAML bool) (resume.Document, error) {
	unmarshal := json.Unmarshal
	if isYAML {
		unmarshal = yaml.Unmarshal
	}

	var raw any
	if err := unmarshal(data, &raw); err != nil {
		return resume.Document{}, fmt.Errorf("failed to parse: %w", err)
	}
	if err := resume.ValidateDocument(raw); err != nil {
		return resume.Document{}, err
	}

	var doc resume.Document
	if err := unmarshal(data, &doc); err != nil {
		return resume.Document{}, fmt.Errorf("failed to decode: %w", err)
	}
	return doc, nil
}
