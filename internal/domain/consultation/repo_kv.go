package consultation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthmetrica/cdss/internal/domain/symptom"
	"github.com/healthmetrica/cdss/internal/platform/kvstore"
)

const (
	slicePatient      = "patient"
	sliceSymptoms     = "symptoms"
	sliceDialogue     = "dialogue"
	sliceDifferential = "differential"
	sliceValidation   = "validation"
	sliceResults      = "results"
	sliceMeta         = "meta"
)

// allSlices lists meta first so an interrupted Delete leaves no live session.
var allSlices = []string{
	sliceMeta, slicePatient, sliceSymptoms, sliceDialogue, sliceDifferential,
	sliceValidation, sliceResults,
}

func sliceKey(id uuid.UUID, slice string) string {
	return fmt.Sprintf("consultation:%s:%s", id, slice)
}

type metaRecord struct {
	ID          uuid.UUID  `json:"id"`
	Stage       Stage      `json:"stage"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type patientRecord struct {
	Patient   Patient `json:"patient"`
	Narrative string  `json:"narrative"`
}

type symptomsRecord struct {
	Symptoms symptom.Set      `json:"symptoms"`
	Entities symptom.Entities `json:"entities"`
}

// kvRepository stores each workflow slice under its own key so a corrupt
// slice only loses that slice.
type kvRepository struct {
	store  kvstore.Store
	logger zerolog.Logger
}

func NewKVRepository(store kvstore.Store, logger zerolog.Logger) Repository {
	return &kvRepository{store: store, logger: logger}
}

func (r *kvRepository) Save(ctx context.Context, s *Session) error {
	puts := []struct {
		slice string
		value interface{}
		keep  bool
	}{
		{slicePatient, patientRecord{Patient: s.Patient, Narrative: s.Narrative}, true},
		{sliceSymptoms, symptomsRecord{Symptoms: s.Symptoms, Entities: s.Entities}, true},
		{sliceDialogue, s.Dialogue, s.Dialogue != nil},
		{sliceDifferential, s.Differential, s.Differential != nil},
		{sliceValidation, s.Validation, s.Validation != nil},
		{sliceResults, s.Results, s.Results != nil},
	}
	for _, p := range puts {
		key := sliceKey(s.ID, p.slice)
		if !p.keep {
			if err := r.store.Remove(ctx, key); err != nil {
				return err
			}
			continue
		}
		if err := kvstore.SetJSON(ctx, r.store, key, p.value); err != nil {
			return err
		}
	}
	// meta is written last; a session without meta does not exist.
	return kvstore.SetJSON(ctx, r.store, sliceKey(s.ID, sliceMeta), metaRecord{
		ID:          s.ID,
		Stage:       s.Stage,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		CompletedAt: s.CompletedAt,
	})
}

// get reads one slice. Malformed values are logged and reported as absent.
func (r *kvRepository) get(ctx context.Context, id uuid.UUID, slice string, v interface{}) (bool, error) {
	ok, err := kvstore.GetJSON(ctx, r.store, sliceKey(id, slice), v)
	if errors.Is(err, kvstore.ErrMalformed) {
		r.logger.Warn().Err(err).Str("consultation_id", id.String()).Str("slice", slice).
			Msg("discarding malformed consultation slice")
		return false, nil
	}
	return ok, err
}

func (r *kvRepository) Load(ctx context.Context, id uuid.UUID) (*Session, error) {
	var meta metaRecord
	ok, err := r.get(ctx, id, sliceMeta, &meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	s := &Session{
		ID:          id,
		Stage:       meta.Stage,
		CreatedAt:   meta.CreatedAt,
		UpdatedAt:   meta.UpdatedAt,
		CompletedAt: meta.CompletedAt,
	}
	if _, known := ParseStage(string(s.Stage)); !known {
		r.logger.Warn().Str("consultation_id", id.String()).Str("stage", string(s.Stage)).
			Msg("unknown stored stage, resetting to intake")
		s.Stage = StageIntake
	}

	var pr patientRecord
	if _, err := r.get(ctx, id, slicePatient, &pr); err != nil {
		return nil, err
	}
	s.Patient, s.Narrative = pr.Patient, pr.Narrative

	var sr symptomsRecord
	ok, err = r.get(ctx, id, sliceSymptoms, &sr)
	if err != nil {
		return nil, err
	}
	if ok {
		s.Symptoms, s.Entities = sr.Symptoms, sr.Entities
	} else {
		s.Symptoms = symptom.Extract(s.Narrative)
		s.Entities = symptom.ExtractEntities(s.Narrative)
	}

	var (
		dl DialogueSlice
		df DifferentialSlice
		vl ValidationSlice
		rs ResultsSlice
	)
	if ok, err := r.get(ctx, id, sliceDialogue, &dl); err != nil {
		return nil, err
	} else if ok {
		s.Dialogue = &dl
	}
	if ok, err := r.get(ctx, id, sliceDifferential, &df); err != nil {
		return nil, err
	} else if ok {
		s.Differential = &df
	}
	if ok, err := r.get(ctx, id, sliceValidation, &vl); err != nil {
		return nil, err
	} else if ok {
		s.Validation = &vl
	}
	if ok, err := r.get(ctx, id, sliceResults, &rs); err != nil {
		return nil, err
	} else if ok {
		s.Results = &rs
	}
	return s, nil
}

func (r *kvRepository) Delete(ctx context.Context, id uuid.UUID) error {
	for _, slice := range allSlices {
		if err := r.store.Remove(ctx, sliceKey(id, slice)); err != nil {
			return err
		}
	}
	return nil
}
