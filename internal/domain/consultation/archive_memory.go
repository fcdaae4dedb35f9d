package consultation

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// memoryArchive keeps completed consultations in process, newest first.
type memoryArchive struct {
	mu      sync.RWMutex
	records []*ArchivedConsultation
}

func NewMemoryArchive() Archive {
	return &memoryArchive{}
}

func (a *memoryArchive) Append(_ context.Context, rec *ArchivedConsultation) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	cp := *rec
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, &cp)
	return nil
}

func (a *memoryArchive) Get(_ context.Context, id uuid.UUID) (*ArchivedConsultation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, r := range a.records {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (a *memoryArchive) List(_ context.Context, limit, offset int) ([]*ArchivedConsultation, int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	total := len(a.records)
	var out []*ArchivedConsultation
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *a.records[i]
		out = append(out, &cp)
	}
	return out, total, nil
}
