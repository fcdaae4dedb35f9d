package consultation

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists consultations that are still in progress.
type Repository interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, id uuid.UUID) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Archive is the append-only record of completed consultations.
type Archive interface {
	Append(ctx context.Context, rec *ArchivedConsultation) error
	Get(ctx context.Context, id uuid.UUID) (*ArchivedConsultation, error)
	List(ctx context.Context, limit, offset int) ([]*ArchivedConsultation, int, error)
}
