// Package snapshot keeps a history of the persisted resume. Snapshots are taken on a cron schedule,
// the history is trimmed to a fixed number of entries, and any snapshot can be restored.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"

	"github.com/umputun/cvedit/app/enums"
	"github.com/umputun/cvedit/app/resume"
	"github.com/umputun/cvedit/app/store/persistence"
)

// ErrNotFound is returned for unknown snapshot ids
var ErrNotFound = errors.New("snapshot not found")

// Storage keeps snapshot history
type Storage interface {
	AddSnapshot(ctx context.Context, key string, data []byte) (persistence.Snapshot, error)
	Snapshots(ctx context.Context, key string) ([]persistence.Snapshot, error)
	Snapshot(ctx context.Context, id int64) (persistence.Snapshot, error)
	CleanupSnapshots(ctx context.Context, key string, keep int) (int64, error)
}

// Resume is the source and target of snapshots
type Resume interface {
	Document() resume.Document
	Replace(ctx context.Context, doc resume.Document) enums.SaveStatus
}

// Params defines scheduler settings
type Params struct {
	Storage  Storage
	Resume   Resume
	Key      string // storage key of the resume
	Schedule string // cron spec, empty disables scheduled snapshots
	Keep     int    // snapshots to keep, 0 keeps all
}

// Info describes a snapshot for listing
type Info struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Size      int       `json:"size"`
	Entries   int       `json:"entries"` // total list entries in the snapshot
}

// Scheduler takes snapshots on schedule and serves history
type Scheduler struct {
	Params
	cron *cron.Cron
}

// New makes a scheduler, the schedule is validated but not started
func New(p Params) (*Scheduler, error) {
	res := &Scheduler{Params: p, cron: cron.New()}
	if p.Schedule == "" {
		return res, nil
	}
	if _, err := res.cron.AddFunc(p.Schedule, func() { res.scheduled(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid snapshot schedule %q: %w", p.Schedule, err)
	}
	return res, nil
}

// Run starts scheduled snapshots and blocks until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Schedule == "" {
		log.Printf("[INFO] scheduled snapshots disabled")
		<-ctx.Done()
		return nil
	}
	log.Printf("[INFO] snapshots scheduled with %q, keep %d", s.Schedule, s.Keep)
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Printf("[DEBUG] snapshot scheduler stopped")
	return nil
}

// Take stores the current resume as a new snapshot and trims the history.
// Nothing is stored if the resume didn't change since the latest snapshot, created is false in this case.
func (s *Scheduler) Take(ctx context.Context) (info Info, created bool, err error) {
	doc := s.Resume.Document()
	data, err := json.Marshal(doc)
	if err != nil {
		return Info{}, false, fmt.Errorf("failed to marshal resume: %w", err)
	}

	existing, err := s.Storage.Snapshots(ctx, s.Key)
	if err != nil {
		return Info{}, false, fmt.Errorf("failed to get snapshots: %w", err)
	}
	if len(existing) > 0 && bytes.Equal(existing[0].Data, data) {
		return makeInfo(existing[0]), false, nil
	}

	snap, err := s.Storage.AddSnapshot(ctx, s.Key, data)
	if err != nil {
		return Info{}, false, fmt.Errorf("failed to add snapshot: %w", err)
	}
	if s.Keep > 0 {
		deleted, err := s.Storage.CleanupSnapshots(ctx, s.Key, s.Keep)
		if err != nil {
			log.Printf("[WARN] failed to cleanup snapshots: %v", err)
		}
		if deleted > 0 {
			log.Printf("[DEBUG] removed %d old snapshots", deleted)
		}
	}
	return makeInfo(snap), true, nil
}

// List returns snapshots, newest first
func (s *Scheduler) List(ctx context.Context) ([]Info, error) {
	snaps, err := s.Storage.Snapshots(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots: %w", err)
	}
	res := make([]Info, 0, len(snaps))
	for _, snap := range snaps {
		res = append(res, makeInfo(snap))
	}
	return res, nil
}

// Restore replaces the resume with the snapshot content
func (s *Scheduler) Restore(ctx context.Context, id int64) (enums.SaveStatus, error) {
	snap, err := s.Storage.Snapshot(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) || (err == nil && snap.Key != s.Key) {
		return enums.SaveStatusNone, fmt.Errorf("snapshot %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return enums.SaveStatusNone, fmt.Errorf("failed to get snapshot %d: %w", id, err)
	}

	var doc resume.Document
	if err := json.Unmarshal(snap.Data, &doc); err != nil {
		return enums.SaveStatusNone, fmt.Errorf("failed to decode snapshot %d: %w", id, err)
	}
	status := s.Resume.Replace(ctx, doc)
	log.Printf("[INFO] resume restored from snapshot %d (%s), %s", id, snap.CreatedAt.Format(time.RFC3339), status)
	return status, nil
}

func (s *Scheduler) scheduled(ctx context.Context) {
	info, created, err := s.Take(ctx)
	if err != nil {
		log.Printf("[WARN] scheduled snapshot failed: %v", err)
		return
	}
	if !created {
		log.Printf("[DEBUG] resume unchanged since snapshot %d, skipped", info.ID)
		return
	}
	log.Printf("[INFO] snapshot %d taken, %d bytes", info.ID, info.Size)
}

func makeInfo(snap persistence.Snapshot) Info {
	res := Info{ID: snap.ID, CreatedAt: snap.CreatedAt, Size: len(snap.Data)}
	var doc resume.Document
	if err := json.Unmarshal(snap.Data, &doc); err == nil {
		res.Entries = len(doc.ContactInfo) + len(doc.EducationData) + len(doc.SkillsData) +
			len(doc.LanguagesData) + len(doc.ExperienceData)
	}
	return res
}
