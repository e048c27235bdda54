// Package notify delivers editor events (reset, persist and fetch failures) to external destinations.
// Destinations are webhook urls (http:// or https://) and slack channels (slack:channel).
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"
	"github.com/go-pkgz/syncs"

	"github.com/umputun/cvedit/app/enums"
)

// Params defines notification settings
type Params struct {
	Destinations   []string      // webhook urls and slack:channel destinations
	SlackToken     string        // required for slack destinations
	WebhookHeaders []string      // extra headers for webhook requests, "Name:Value"
	Events         []enums.Event // events to deliver, all if empty
	Timeout        time.Duration // per send
	Concurrency    int           // parallel sends, defaults to number of destinations
	Prefix         string        // prepended to every message, e.g. the instance url
}

// Service sends events to all configured destinations. A nil *Service is valid and does nothing.
type Service struct {
	destinations []string
	notifiers    []notify.Notifier
	events       map[enums.Event]bool
	timeout      time.Duration
	concurrency  int
	prefix       string
	wg           sync.WaitGroup
}

// NewService makes notification service for given destinations, returns nil if nothing to send to
func NewService(p Params) *Service {
	if len(p.Destinations) == 0 {
		return nil
	}

	res := &Service{destinations: p.Destinations, timeout: p.Timeout, concurrency: p.Concurrency, prefix: p.Prefix}
	if res.timeout <= 0 {
		res.timeout = 10 * time.Second
	}
	if res.concurrency <= 0 {
		res.concurrency = len(p.Destinations)
	}
	if len(p.Events) > 0 {
		res.events = make(map[enums.Event]bool, len(p.Events))
		for _, e := range p.Events {
			res.events[e] = true
		}
	}

	res.notifiers = append(res.notifiers, notify.NewWebhook(notify.WebhookParams{Timeout: res.timeout, Headers: p.WebhookHeaders}))
	if p.SlackToken != "" {
		res.notifiers = append(res.notifiers, notify.NewSlack(p.SlackToken))
	}
	log.Printf("[INFO] notifications enabled for %s", res)
	return res
}

// Notify sends the event in background. Sending never blocks the caller and failures are only logged.
// Use Wait to make sure all started sends are done.
func (s *Service) Notify(ctx context.Context, event enums.Event, text string) {
	if s == nil || (s.events != nil && !s.events[event]) {
		return
	}
	// the caller's request may be gone by the time the send happens
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Send(ctx, event, text); err != nil {
			log.Printf("[WARN] can't send %s notification: %v", event, err)
		}
	}()
}

// Send delivers the message to every destination in parallel and returns combined error
func (s *Service) Send(ctx context.Context, event enums.Event, text string) error {
	if s == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := s.message(event, text)
	grp := syncs.NewErrSizedGroup(s.concurrency)
	for _, dest := range s.destinations {
		grp.Go(func() error {
			if err := notify.Send(ctx, s.notifiers, dest, msg); err != nil {
				return fmt.Errorf("send to %s: %w", redact(dest), err)
			}
			log.Printf("[DEBUG] %s notification sent to %s", event, redact(dest))
			return nil
		})
	}
	return grp.Wait()
}

// Wait blocks until all background sends are done
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func (s *Service) String() string {
	if s == nil {
		return "no notifications"
	}
	dests := make([]string, 0, len(s.destinations))
	for _, d := range s.destinations {
		dests = append(dests, redact(d))
	}
	return fmt.Sprintf("destinations: %s", strings.Join(dests, ", "))
}

func (s *Service) message(event enums.Event, text string) string {
	title := map[enums.Event]string{
		enums.EventReset:         "resume reset",
		enums.EventPersistFailed: "failed to save resume",
		enums.EventFetchFailed:   "failed to load fallback resume",
	}[event]
	if title == "" {
		title = event.String()
	}
	if s.prefix != "" {
		return fmt.Sprintf("%s: %s, %s", s.prefix, title, text)
	}
	return fmt.Sprintf("%s, %s", title, text)
}

// redact drops query and credentials from destination url, webhook urls often carry tokens there
func redact(dest string) string {
	if i := strings.IndexAny(dest, "?#"); i >= 0 {
		dest = dest[:i]
	}
	if at := strings.Index(dest, "@"); at >= 0 {
		if sch := strings.Index(dest, "://"); sch >= 0 && sch < at {
			dest = dest[:sch+3] + "***" + dest[at:]
		}
	}
	return dest
}
