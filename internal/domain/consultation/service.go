package consultation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthmetrica/cdss/internal/domain/dialogue"
	"github.com/healthmetrica/cdss/internal/domain/labtest"
	"github.com/healthmetrica/cdss/internal/platform/events"
)

// EventCompleted is published once a consultation is archived.
const EventCompleted = "consultation.completed"

// Recorder receives pipeline metrics. All methods must be cheap.
type Recorder interface {
	StageTransition(from, to string)
	GuardRejected(from, to string)
	ConsultationCompleted()
}

type Service struct {
	repo      Repository
	archive   Archive
	publisher events.Publisher
	recorder  Recorder
	logger    zerolog.Logger
	now       func() time.Time

	// mu serialises load-modify-save cycles.
	mu sync.Mutex
}

func NewService(repo Repository, archive Archive, publisher events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		archive:   archive,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// SetRecorder attaches an optional metrics recorder.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

func (s *Service) Create(ctx context.Context, p Patient, narrative string) (*Session, error) {
	sess := Start(p, narrative, s.now())
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save consultation: %w", err)
	}
	s.logger.Info().Str("consultation_id", sess.ID.String()).Int("symptoms", sess.Symptoms.Len()).
		Msg("consultation started")
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	Repair(sess, s.now())
	return sess, nil
}

// mutate loads the session, applies fn and saves the result. Nothing is
// written when fn fails.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(sess *Session, now time.Time) error) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	Repair(sess, now)
	from := sess.Stage
	if err := fn(sess, now); err != nil {
		s.observeRejection(err)
		return nil, err
	}
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save consultation: %w", err)
	}
	if sess.Stage != from && s.recorder != nil {
		s.recorder.StageTransition(string(from), string(sess.Stage))
	}
	return sess, nil
}

func (s *Service) observeRejection(err error) {
	var ge *GuardError
	if !errors.As(err, &ge) {
		return
	}
	s.logger.Debug().Str("from", string(ge.From)).Str("to", string(ge.To)).Strs("reasons", ge.Reasons).
		Msg("transition rejected")
	if s.recorder != nil {
		s.recorder.GuardRejected(string(ge.From), string(ge.To))
	}
}

func (s *Service) UpdateIntake(ctx context.Context, id uuid.UUID, p Patient, narrative string) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session, now time.Time) error {
		return UpdateIntake(sess, p, narrative, now)
	})
}

// Advance moves the consultation forward. Advancing out of the results
// stage completes and archives it; use Complete to get the archive record.
func (s *Service) Advance(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Stage == StageResults {
		rec, err := s.Complete(ctx, id)
		if err != nil {
			return nil, err
		}
		sess.Stage = StageCompleted
		sess.CompletedAt = &rec.CompletedAt
		return sess, nil
	}
	return s.mutate(ctx, id, Advance)
}

func (s *Service) Retreat(ctx context.Context, id uuid.UUID, to Stage) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session, now time.Time) error {
		return Retreat(sess, to, now)
	})
}

func (s *Service) SkipDialogue(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.mutate(ctx, id, SkipDialogue)
}

func (s *Service) Answer(ctx context.Context, id uuid.UUID, answer string) (*Session, *dialogue.Question, error) {
	var next *dialogue.Question
	sess, err := s.mutate(ctx, id, func(sess *Session, now time.Time) error {
		q, err := Answer(sess, answer, now)
		next = q
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, next, nil
}

func (s *Service) SelectPrimary(ctx context.Context, id uuid.UUID, primaryID string) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session, now time.Time) error {
		return SelectPrimary(sess, primaryID, now)
	})
}

func (s *Service) ToggleTest(ctx context.Context, id uuid.UUID, testID labtest.TestID, selected bool) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session, now time.Time) error {
		return ToggleTest(sess, testID, selected, now)
	})
}

func (s *Service) SetPhysicianDiagnosis(ctx context.Context, id uuid.UUID, diagnosis, notes string) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session, now time.Time) error {
		return SetPhysicianDiagnosis(sess, diagnosis, notes, now)
	})
}

func (s *Service) RecordResult(ctx context.Context, id uuid.UUID, testID labtest.TestID, value, notes, resultDate string) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session, now time.Time) error {
		return RecordResult(sess, testID, value, notes, resultDate, now)
	})
}

// Confirm sets the confirmation flag and, when finalDiagnosis is non-empty,
// replaces the final diagnosis first.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, confirmed bool, finalDiagnosis string) (*Session, error) {
	return s.mutate(ctx, id, func(sess *Session, now time.Time) error {
		if finalDiagnosis != "" {
			if err := SetFinalDiagnosis(sess, finalDiagnosis, now); err != nil {
				return err
			}
		}
		return Confirm(sess, confirmed, now)
	})
}

// Complete runs the final transition, appends the consultation to the
// archive, drops the working copy and publishes EventCompleted. A failed
// publish is logged and does not undo the completion. When the working copy
// cannot be removed it is saved at the completed stage instead.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*ArchivedConsultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	Repair(sess, now)
	if sess.Stage != StageResults {
		err := &GuardError{From: sess.Stage, To: StageCompleted, Reasons: []string{"consultation must be in the results stage"}}
		s.observeRejection(err)
		return nil, err
	}
	if err := Advance(sess, now); err != nil {
		s.observeRejection(err)
		return nil, err
	}

	rec := NewArchiveRecord(sess)
	if err := s.archive.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("archive consultation: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		// A completed working copy cannot be advanced or completed again.
		s.logger.Warn().Err(err).Str("consultation_id", id.String()).
			Msg("failed to remove working copy, keeping it as completed")
		if err := s.repo.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("retire working copy: %w", err)
		}
	}
	if s.recorder != nil {
		s.recorder.StageTransition(string(StageResults), string(StageCompleted))
		s.recorder.ConsultationCompleted()
	}

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, events.Event{
			Type:       EventCompleted,
			Key:        rec.SessionID.String(),
			OccurredAt: rec.CompletedAt,
			Payload:    rec,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("consultation_id", id.String()).Msg("failed to publish completion event")
		}
	}
	s.logger.Info().Str("consultation_id", id.String()).Str("archive_id", rec.ID.String()).
		Str("final_diagnosis", rec.FinalDiagnosis).Msg("consultation completed")
	return rec, nil
}

func (s *Service) GetArchived(ctx context.Context, id uuid.UUID) (*ArchivedConsultation, error) {
	return s.archive.Get(ctx, id)
}

func (s *Service) ListArchived(ctx context.Context, limit, offset int) ([]*ArchivedConsultation, int, error) {
	return s.archive.List(ctx, limit, offset)
}
