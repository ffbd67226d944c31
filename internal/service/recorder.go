package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/humanizer/humanizer/internal/model"
	"github.com/humanizer/humanizer/internal/repository"
)

// HistoryStore is the persistence the recorder needs.
type HistoryStore interface {
	InsertRecord(ctx context.Context, rec *model.HumanizationRecord) error
	ListRecordsByUser(ctx context.Context, userID string) ([]*model.HumanizationRecord, error)
}

// Recorder persists humanization results.
type Recorder struct {
	store HistoryStore
	now   func() time.Time
	newID func() string
}

// NewRecorder creates a new Recorder.
func NewRecorder(store HistoryStore) *Recorder {
	return &Recorder{
		store: store,
		now:   time.Now,
		newID: newRecordID,
	}
}

// Record appends an original/rewritten pair to the user's history.
func (r *Recorder) Record(ctx context.Context, userID, original, humanized string) (*model.HumanizationRecord, error) {
	if humanized == "" {
		return nil, fmt.Errorf("%w: empty humanized text", ErrPersistenceFailed)
	}

	rec := &model.HumanizationRecord{
		ID:            r.newID(),
		UserID:        userID,
		OriginalText:  original,
		HumanizedText: humanized,
		CreatedAt:     r.now().UTC(),
	}

	if err := r.store.InsertRecord(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, ErrProfileNotFound)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	return rec, nil
}

// ListForUser returns the user's records, newest first.
func (r *Recorder) ListForUser(ctx context.Context, userID string) ([]*model.HumanizationRecord, error) {
	records, err := r.store.ListRecordsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return records, nil
}

// newRecordID returns a lexically sortable record id.
func newRecordID() string {
	return ulid.Make().String()
}
