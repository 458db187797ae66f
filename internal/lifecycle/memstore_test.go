package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
)

// memStore is an in-memory Store for tests. A single mutex held for
// the whole transaction plays the role of the row lock: concurrent
// transitions on the same run are serialized exactly like in Postgres.
// Writes are staged in the unit of work and applied on commit, so a
// failed transition leaves the store untouched.
type memStore struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]domain.SubmissionRun
	targets   map[uuid.UUID]domain.SubmissionTarget
	events    []domain.SubmissionEvent
	artifacts map[uuid.UUID]map[domain.ArtifactKind]bool
}

func newMemStore() *memStore {
	return &memStore{
		runs:      make(map[uuid.UUID]domain.SubmissionRun),
		targets:   make(map[uuid.UUID]domain.SubmissionTarget),
		artifacts: make(map[uuid.UUID]map[domain.ArtifactKind]bool),
	}
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	uow := &memUow{
		store:   s,
		runs:    make(map[uuid.UUID]domain.SubmissionRun),
		targets: make(map[uuid.UUID]domain.SubmissionTarget),
	}
	if err := fn(ctx, uow); err != nil {
		return err
	}
	uow.commit()
	return nil
}

// Seeding helpers run outside transactions.

func (s *memStore) seedTarget(t domain.SubmissionTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[t.ID] = t
}

func (s *memStore) seedRun(r domain.SubmissionRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
}

func (s *memStore) seedArtifact(runID uuid.UUID, kind domain.ArtifactKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifacts[runID] == nil {
		s.artifacts[runID] = make(map[domain.ArtifactKind]bool)
	}
	s.artifacts[runID][kind] = true
}

func (s *memStore) getRun(id uuid.UUID) domain.SubmissionRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

func (s *memStore) getTarget(id uuid.UUID) domain.SubmissionTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targets[id]
}

func (s *memStore) eventsForRun(id uuid.UUID) []domain.SubmissionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SubmissionEvent
	for _, e := range s.events {
		if e.RunID == id {
			out = append(out, e)
		}
	}
	return out
}

// memUow stages writes until commit.
type memUow struct {
	store   *memStore
	runs    map[uuid.UUID]domain.SubmissionRun
	targets map[uuid.UUID]domain.SubmissionTarget
	events  []domain.SubmissionEvent
}

func (u *memUow) commit() {
	for id, r := range u.runs {
		u.store.runs[id] = r
	}
	for id, t := range u.targets {
		u.store.targets[id] = t
	}
	u.store.events = append(u.store.events, u.events...)
}

func (u *memUow) lookupRun(id uuid.UUID) (domain.SubmissionRun, bool) {
	if r, ok := u.runs[id]; ok {
		return r, true
	}
	r, ok := u.store.runs[id]
	return r, ok
}

func (u *memUow) GetRunForUpdate(ctx context.Context, runID uuid.UUID) (*domain.SubmissionRun, error) {
	return u.GetRun(ctx, runID)
}

func (u *memUow) GetRun(_ context.Context, runID uuid.UUID) (*domain.SubmissionRun, error) {
	r, ok := u.lookupRun(runID)
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := r
	return &cp, nil
}

func (u *memUow) InsertRun(_ context.Context, run *domain.SubmissionRun) error {
	if _, ok := u.lookupRun(run.ID); ok {
		return fmt.Errorf("duplicate run id %s", run.ID)
	}
	u.runs[run.ID] = *run
	return nil
}

func (u *memUow) UpdateRun(_ context.Context, runID uuid.UUID, upd RunUpdate) error {
	r, ok := u.lookupRun(runID)
	if !ok {
		return ErrRunNotFound
	}

	if upd.Status != nil {
		r.Status = *upd.Status
	}
	if upd.StatusReason != nil {
		r.StatusReason = upd.StatusReason
	} else if upd.ClearReason {
		r.StatusReason = nil
	}
	if upd.StatusChangedAt != nil {
		r.StatusChangedAt = *upd.StatusChangedAt
	}
	if upd.AttemptNo != nil {
		r.AttemptNo = *upd.AttemptNo
	}
	if upd.StartedAt != nil {
		r.StartedAt = upd.StartedAt
	}
	if upd.CompletedAt != nil {
		r.CompletedAt = upd.CompletedAt
	}
	if upd.ActionNeeded != nil {
		r.ActionNeeded = upd.ActionNeeded
	} else if upd.ClearActionNeeded {
		r.ActionNeeded = nil
	}
	if upd.LastError != nil {
		r.LastError = upd.LastError
	}
	if upd.NextRunAt != nil {
		r.NextRunAt = upd.NextRunAt
	} else if upd.ClearNextRunAt {
		r.NextRunAt = nil
	}
	if upd.Lock != nil {
		lockedAt := upd.Lock.LockedAt
		lockedBy := upd.Lock.LockedBy
		expires := upd.Lock.LeaseExpiresAt
		r.LockedAt = &lockedAt
		r.LockedBy = &lockedBy
		r.LeaseExpiresAt = &expires
	} else if upd.ClearLock {
		r.LockedAt = nil
		r.LockedBy = nil
		r.LeaseExpiresAt = nil
	}
	if upd.ExternalSubmissionID != nil {
		r.ExternalSubmissionID = upd.ExternalSubmissionID
	}
	if upd.RawStatus != nil {
		r.RawStatus = upd.RawStatus
	}
	if upd.RawStatusMessage != nil {
		r.RawStatusMessage = upd.RawStatusMessage
	}
	if upd.ChangesAcknowledged != nil {
		r.ChangesAcknowledged = *upd.ChangesAcknowledged
	}
	if upd.ChangesAcknowledgedAt != nil {
		r.ChangesAcknowledgedAt = upd.ChangesAcknowledgedAt
	}
	if upd.ChangesAcknowledgedBy != nil {
		r.ChangesAcknowledgedBy = upd.ChangesAcknowledgedBy
	}

	u.runs[runID] = r
	return nil
}

func (u *memUow) InsertEvent(_ context.Context, event *domain.SubmissionEvent) error {
	// Mirror the bigserial seq column: insertion order survives read-back.
	cp := *event
	cp.Seq = int64(len(u.store.events)+len(u.events)) + 1
	u.events = append(u.events, cp)
	return nil
}

func (u *memUow) GetTarget(_ context.Context, targetID uuid.UUID) (*domain.SubmissionTarget, error) {
	if t, ok := u.targets[targetID]; ok {
		cp := t
		return &cp, nil
	}
	t, ok := u.store.targets[targetID]
	if !ok {
		return nil, ErrTargetNotFound
	}
	cp := t
	return &cp, nil
}

func (u *memUow) UpdateTargetCurrent(_ context.Context, targetID uuid.UUID, upd TargetUpdate) error {
	t, err := u.GetTarget(context.Background(), targetID)
	if err != nil {
		return err
	}
	if upd.CurrentStatus != nil {
		t.CurrentStatus = *upd.CurrentStatus
	}
	if upd.CurrentRunID != nil {
		t.CurrentRunID = upd.CurrentRunID
	}
	if upd.LiveVerifiedAt != nil {
		t.LiveVerifiedAt = upd.LiveVerifiedAt
	}
	u.targets[targetID] = *t
	return nil
}

func (u *memUow) HasArtifact(_ context.Context, runID uuid.UUID, kind domain.ArtifactKind) (bool, error) {
	return u.store.artifacts[runID][kind], nil
}

// --- Test fixture helpers ---

func testEngine(store Store) *Engine {
	return New(Config{Store: store})
}

func testEngineAt(store Store, at time.Time) *Engine {
	return New(Config{Store: store, Now: func() time.Time { return at }})
}

// newTestWorld seeds a target with one run in the given status and
// points the target at it.
func newTestWorld(status domain.Status) (*memStore, domain.SubmissionTarget, domain.SubmissionRun) {
	store := newMemStore()
	now := time.Now().UTC().Add(-time.Minute)

	target := domain.SubmissionTarget{
		ID:            uuid.New(),
		DirectorySlug: "yelp",
		BusinessID:    uuid.New(),
		CurrentStatus: status,
		CreatedAt:     now,
	}
	run := domain.SubmissionRun{
		ID:              uuid.New(),
		TargetID:        target.ID,
		AttemptNo:       1,
		Status:          status,
		StatusChangedAt: now,
		CorrelationID:   uuid.New(),
		CreatedAt:       now,
	}
	target.CurrentRunID = &run.ID

	store.seedTarget(target)
	store.seedRun(run)
	return store, target, run
}
