package consultation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthmetrica/cdss/internal/domain/dialogue"
	"github.com/healthmetrica/cdss/internal/domain/differential"
	"github.com/healthmetrica/cdss/internal/domain/labtest"
	"github.com/healthmetrica/cdss/internal/domain/symptom"
)

// Stage is a step of the consultation workflow. Stages are strictly ordered.
type Stage string

const (
	StageIntake       Stage = "intake"
	StageDialogue     Stage = "dialogue"
	StageDifferential Stage = "differential"
	StageValidation   Stage = "validation"
	StageResults      Stage = "results"
	StageCompleted    Stage = "completed"
)

var stageOrder = []Stage{
	StageIntake, StageDialogue, StageDifferential, StageValidation, StageResults, StageCompleted,
}

func (s Stage) index() int {
	for i, v := range stageOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// Before reports whether s comes earlier in the workflow than o.
func (s Stage) Before(o Stage) bool {
	return s.index() < o.index()
}

func (s Stage) next() (Stage, bool) {
	i := s.index()
	if i < 0 || i+1 >= len(stageOrder) {
		return "", false
	}
	return stageOrder[i+1], true
}

// ParseStage returns the stage named by s.
func ParseStage(s string) (Stage, bool) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	return st, st.index() >= 0
}

var (
	ErrNotFound         = errors.New("consultation not found")
	ErrUnknownCandidate = errors.New("diagnosis is not among the candidates")
	ErrUnknownTest      = errors.New("test is not part of this consultation")
)

// GuardError reports a rejected stage transition or an edit attempted
// outside the stage that owns the data. The session is left unchanged.
type GuardError struct {
	From    Stage    `json:"from"`
	To      Stage    `json:"to"`
	Reasons []string `json:"reasons"`
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s: %s", e.From, e.To, strings.Join(e.Reasons, "; "))
}

type Patient struct {
	PatientID      string `json:"patientId,omitempty"`
	Name           string `json:"name"`
	Age            string `json:"age"`
	Gender         string `json:"gender"`
	DateOfBirth    string `json:"dateOfBirth,omitempty"`
	ContactInfo    string `json:"contactInfo,omitempty"`
	Location       string `json:"location,omitempty"`
	MedicalHistory string `json:"medicalHistory,omitempty"`
}

type DialogueSlice struct {
	Script  dialogue.Script `json:"script"`
	State   dialogue.State  `json:"state"`
	Skipped bool            `json:"skipped"`
}

type DifferentialSlice struct {
	Result    differential.Result       `json:"result"`
	PrimaryID differential.DiagnosisID `json:"primaryId"`
}

// Primary returns the chosen candidate.
func (d *DifferentialSlice) Primary() (differential.Candidate, bool) {
	if d == nil || d.PrimaryID == "" {
		return differential.Candidate{}, false
	}
	return d.Result.Find(d.PrimaryID)
}

type ValidationSlice struct {
	AIDiagnosis        string                   `json:"aiDiagnosis"`
	PhysicianDiagnosis string                   `json:"physicianDiagnosis"`
	PhysicianNotes     string                   `json:"physicianNotes,omitempty"`
	Tests              []labtest.Recommendation `json:"tests"`
}

type LabResult struct {
	TestID     labtest.TestID `json:"testId"`
	TestName   string         `json:"testName"`
	Result     string         `json:"result"`
	Notes      string         `json:"notes,omitempty"`
	ResultDate string         `json:"resultDate,omitempty"`
}

type ResultsSlice struct {
	Results        []LabResult `json:"results"`
	FinalDiagnosis string      `json:"finalDiagnosis"`
	Confirmed      bool        `json:"confirmed"`
}

// Session is one consultation in progress. Slices for later stages are nil
// until the workflow first enters them and are cleared when upstream data
// changes.
type Session struct {
	ID           uuid.UUID          `json:"id"`
	Stage        Stage              `json:"stage"`
	Patient      Patient            `json:"patient"`
	Narrative    string             `json:"narrative"`
	Symptoms     symptom.Set        `json:"symptoms"`
	Entities     symptom.Entities   `json:"entities"`
	Dialogue     *DialogueSlice     `json:"dialogue,omitempty"`
	Differential *DifferentialSlice `json:"differential,omitempty"`
	Validation   *ValidationSlice   `json:"validation,omitempty"`
	Results      *ResultsSlice      `json:"results,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	CompletedAt  *time.Time         `json:"completedAt,omitempty"`
}

// ArchivedConsultation is the immutable record written when a consultation
// completes.
type ArchivedConsultation struct {
	ID                 uuid.UUID   `json:"id"`
	SessionID          uuid.UUID   `json:"sessionId"`
	Patient            Patient     `json:"patient"`
	Symptoms           symptom.Set `json:"symptoms"`
	PrimaryDiagnosis   string      `json:"primaryDiagnosis"`
	ICD10              string      `json:"icd10,omitempty"`
	Confidence         int         `json:"confidence"`
	PhysicianDiagnosis string      `json:"physicianDiagnosis"`
	PhysicianNotes     string      `json:"physicianNotes,omitempty"`
	FinalDiagnosis     string      `json:"finalDiagnosis"`
	Results            []LabResult `json:"results"`
	EstimatedCost      int         `json:"estimatedCost"`
	DialogueTurns      int         `json:"dialogueTurns"`
	StartedAt          time.Time   `json:"startedAt"`
	CompletedAt        time.Time   `json:"completedAt"`
}

// NewArchiveRecord summarises a completed session.
func NewArchiveRecord(s *Session) *ArchivedConsultation {
	rec := &ArchivedConsultation{
		ID:        uuid.New(),
		SessionID: s.ID,
		Patient:   s.Patient,
		Symptoms:  append(symptom.Set(nil), s.Symptoms...),
		StartedAt: s.CreatedAt,
	}
	if s.CompletedAt != nil {
		rec.CompletedAt = *s.CompletedAt
	}
	if s.Dialogue != nil {
		rec.DialogueTurns = dialogue.Answered(s.Dialogue.State)
	}
	if s.Differential != nil {
		rec.Confidence = s.Differential.Result.Confidence
		if p, ok := s.Differential.Primary(); ok {
			rec.PrimaryDiagnosis = p.Name
			rec.ICD10 = p.ICD10
		}
	}
	if s.Validation != nil {
		rec.PhysicianDiagnosis = s.Validation.PhysicianDiagnosis
		rec.PhysicianNotes = s.Validation.PhysicianNotes
		rec.EstimatedCost = labtest.TotalEstimatedCost(s.Validation.Tests)
	}
	if s.Results != nil {
		rec.FinalDiagnosis = s.Results.FinalDiagnosis
		rec.Results = append([]LabResult(nil), s.Results.Results...)
	}
	return rec
}
