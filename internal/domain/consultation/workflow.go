package consultation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/healthmetrica/cdss/internal/domain/dialogue"
	"github.com/healthmetrica/cdss/internal/domain/differential"
	"github.com/healthmetrica/cdss/internal/domain/labtest"
	"github.com/healthmetrica/cdss/internal/domain/symptom"
)

const (
	minNarrativeLength = 20
	minDialogueAnswers = 3
)

// Start opens a consultation at the intake stage with symptoms extracted
// from narrative.
func Start(p Patient, narrative string, now time.Time) *Session {
	now = now.UTC()
	return &Session{
		ID:        uuid.New(),
		Stage:     StageIntake,
		Patient:   trimPatient(p),
		Narrative: narrative,
		Symptoms:  symptom.Extract(narrative),
		Entities:  symptom.ExtractEntities(narrative),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func trimPatient(p Patient) Patient {
	p.PatientID = strings.TrimSpace(p.PatientID)
	p.Name = strings.TrimSpace(p.Name)
	p.Age = strings.TrimSpace(p.Age)
	p.Gender = strings.TrimSpace(p.Gender)
	p.Location = strings.TrimSpace(p.Location)
	return p
}

// UpdateIntake replaces the patient and narrative. Every downstream slice is
// discarded.
func UpdateIntake(s *Session, p Patient, narrative string, now time.Time) error {
	if err := requireStage(s, StageIntake); err != nil {
		return err
	}
	s.Patient = trimPatient(p)
	s.Narrative = narrative
	s.Symptoms = symptom.Extract(narrative)
	s.Entities = symptom.ExtractEntities(narrative)
	s.Dialogue = nil
	invalidateFrom(s, StageDifferential)
	s.UpdatedAt = now.UTC()
	return nil
}

// invalidateFrom clears the slice owned by stage and every later one.
func invalidateFrom(s *Session, stage Stage) {
	switch stage {
	case StageDifferential:
		s.Differential = nil
		fallthrough
	case StageValidation:
		s.Validation = nil
		fallthrough
	case StageResults:
		s.Results = nil
	}
}

func requireStage(s *Session, owner Stage) error {
	if s.Stage == owner {
		return nil
	}
	return &GuardError{
		From:    s.Stage,
		To:      owner,
		Reasons: []string{fmt.Sprintf("only allowed during the %s stage", owner)},
	}
}

func intakeReasons(s *Session) []string {
	var reasons []string
	if s.Patient.Name == "" {
		reasons = append(reasons, "patient name is required")
	}
	if s.Patient.Age == "" {
		reasons = append(reasons, "patient age is required")
	}
	if s.Patient.Gender == "" {
		reasons = append(reasons, "patient gender is required")
	}
	if utf8.RuneCountInString(strings.TrimSpace(s.Narrative)) < minNarrativeLength {
		reasons = append(reasons, fmt.Sprintf("symptom narrative must be at least %d characters", minNarrativeLength))
	}
	return reasons
}

func dialogueReasons(s *Session) []string {
	answered := 0
	if s.Dialogue != nil {
		answered = dialogue.Answered(s.Dialogue.State)
	}
	if answered < minDialogueAnswers {
		return []string{fmt.Sprintf("at least %d dialogue answers are required, have %d", minDialogueAnswers, answered)}
	}
	return nil
}

func differentialReasons(s *Session) []string {
	if s.Differential == nil || s.Differential.PrimaryID == "" {
		return []string{"a primary diagnosis must be selected"}
	}
	if _, ok := s.Differential.Primary(); !ok {
		return []string{fmt.Sprintf("primary diagnosis %q is not among the candidates", s.Differential.PrimaryID)}
	}
	return nil
}

func validationReasons(s *Session) []string {
	var reasons []string
	if s.Validation == nil || strings.TrimSpace(s.Validation.PhysicianDiagnosis) == "" {
		reasons = append(reasons, "physician diagnosis is required")
	}
	if s.Validation == nil || len(labtest.Selected(s.Validation.Tests)) == 0 {
		reasons = append(reasons, "at least one lab test must be selected")
	}
	return reasons
}

func resultsReasons(s *Session) []string {
	if s.Results == nil {
		return []string{"no lab results recorded"}
	}
	var reasons []string
	for _, r := range s.Results.Results {
		if strings.TrimSpace(r.Result) == "" {
			reasons = append(reasons, fmt.Sprintf("result missing for %s", r.TestID))
		}
	}
	if !s.Results.Confirmed {
		reasons = append(reasons, "final diagnosis must be confirmed")
	}
	return reasons
}

func guardReasons(s *Session, from Stage) []string {
	switch from {
	case StageIntake:
		return intakeReasons(s)
	case StageDialogue:
		return dialogueReasons(s)
	case StageDifferential:
		return differentialReasons(s)
	case StageValidation:
		return validationReasons(s)
	case StageResults:
		return resultsReasons(s)
	}
	return nil
}

// Advance moves the session forward by one stage when the current stage's
// guard passes. Data for the entered stage is computed if absent.
func Advance(s *Session, now time.Time) error {
	to, ok := s.Stage.next()
	if !ok {
		return &GuardError{From: s.Stage, To: s.Stage, Reasons: []string{"consultation is already completed"}}
	}
	if reasons := guardReasons(s, s.Stage); len(reasons) > 0 {
		return &GuardError{From: s.Stage, To: to, Reasons: reasons}
	}
	enter(s, to, now)
	return nil
}

func enter(s *Session, to Stage, now time.Time) {
	now = now.UTC()
	switch to {
	case StageDialogue:
		ensureScript(s)
	case StageDifferential:
		if s.Differential == nil {
			s.Differential = analyze(s, now)
		}
	case StageValidation:
		if s.Validation == nil {
			s.Validation = recommend(s)
		}
	case StageResults:
		if s.Results == nil {
			s.Results = openResults(s)
		}
	case StageCompleted:
		s.CompletedAt = &now
	}
	s.Stage = to
	s.UpdatedAt = now
}

// ensureScript gives the session a question script when it has none, which
// is the case after intake or after a skipped dialogue is reopened.
func ensureScript(s *Session) {
	if s.Dialogue == nil || s.Dialogue.Script.Len() == 0 {
		s.Dialogue = &DialogueSlice{Script: dialogue.BuildScript(s.Symptoms)}
	}
}

func analyze(s *Session, now time.Time) *DifferentialSlice {
	var turns []differential.Turn
	if s.Dialogue != nil {
		turns = s.Dialogue.State.Turns
	}
	res := differential.Analyze(s.Symptoms, turns, differential.PatientContext{
		Age:      s.Patient.Age,
		Gender:   s.Patient.Gender,
		Location: s.Patient.Location,
	}, now)
	slice := &DifferentialSlice{Result: res}
	if len(res.Candidates) > 0 {
		slice.PrimaryID = res.Candidates[0].ID
	}
	return slice
}

func recommend(s *Session) *ValidationSlice {
	primary, _ := s.Differential.Primary()
	return &ValidationSlice{
		AIDiagnosis:        primary.Name,
		PhysicianDiagnosis: primary.Name,
		Tests:              labtest.Recommend(s.Differential.Result.Candidates, string(s.Differential.PrimaryID)),
	}
}

func openResults(s *Session) *ResultsSlice {
	selected := labtest.Selected(s.Validation.Tests)
	rows := make([]LabResult, 0, len(selected))
	for _, t := range selected {
		rows = append(rows, LabResult{TestID: t.ID, TestName: t.Name})
	}
	return &ResultsSlice{
		Results:        rows,
		FinalDiagnosis: s.Validation.PhysicianDiagnosis,
	}
}

// Repair recomputes any slice the current stage depends on that is missing,
// for example after a stored slice failed to decode.
func Repair(s *Session, now time.Time) {
	idx := s.Stage.index()
	if s.Stage == StageDialogue {
		ensureScript(s)
	} else if idx > StageDialogue.index() && s.Dialogue == nil {
		s.Dialogue = &DialogueSlice{Skipped: true}
	}
	if idx >= StageDifferential.index() && s.Differential == nil {
		s.Differential = analyze(s, now.UTC())
	}
	if idx >= StageValidation.index() && s.Validation == nil {
		s.Validation = recommend(s)
	}
	if idx >= StageResults.index() && s.Results == nil {
		s.Results = openResults(s)
	}
}

// Retreat moves the session back to an earlier stage. Collected data is
// kept.
func Retreat(s *Session, to Stage, now time.Time) error {
	if s.Stage == StageCompleted {
		return &GuardError{From: s.Stage, To: to, Reasons: []string{"completed consultations cannot be reopened"}}
	}
	if to.index() < 0 || !to.Before(s.Stage) {
		return &GuardError{From: s.Stage, To: to, Reasons: []string{fmt.Sprintf("%q is not an earlier stage", to)}}
	}
	if to == StageDialogue {
		ensureScript(s)
	}
	s.Stage = to
	s.UpdatedAt = now.UTC()
	return nil
}

// SkipDialogue jumps from intake straight to the differential with an empty
// transcript.
func SkipDialogue(s *Session, now time.Time) error {
	if s.Stage != StageIntake {
		return &GuardError{From: s.Stage, To: StageDifferential, Reasons: []string{"dialogue can only be skipped from intake"}}
	}
	if reasons := intakeReasons(s); len(reasons) > 0 {
		return &GuardError{From: s.Stage, To: StageDifferential, Reasons: reasons}
	}
	if s.Dialogue == nil || !s.Dialogue.Skipped {
		s.Dialogue = &DialogueSlice{Skipped: true}
		invalidateFrom(s, StageDifferential)
	}
	enter(s, StageDifferential, now)
	return nil
}

// Answer records an answer to the current dialogue question and returns the
// next one, or nil when the script is exhausted.
func Answer(s *Session, answer string, now time.Time) (*dialogue.Question, error) {
	if err := requireStage(s, StageDialogue); err != nil {
		return nil, err
	}
	slice := DialogueSlice{Script: dialogue.BuildScript(s.Symptoms)}
	if s.Dialogue != nil && s.Dialogue.Script.Len() > 0 {
		slice = *s.Dialogue
	}
	state, next, err := dialogue.Advance(slice.Script, slice.State, answer, now)
	if err != nil {
		return next, err
	}
	slice.State = state
	slice.Skipped = false
	s.Dialogue = &slice
	invalidateFrom(s, StageDifferential)
	s.UpdatedAt = now.UTC()
	return next, nil
}

// CurrentQuestion returns the dialogue question awaiting an answer.
func CurrentQuestion(s *Session) *dialogue.Question {
	if s.Dialogue == nil {
		return nil
	}
	return dialogue.Current(s.Dialogue.Script, s.Dialogue.State)
}

// SelectPrimary marks id as the working diagnosis.
func SelectPrimary(s *Session, id string, now time.Time) error {
	if err := requireStage(s, StageDifferential); err != nil {
		return err
	}
	if s.Differential == nil {
		return ErrUnknownCandidate
	}
	did := differential.ParseDiagnosisID(id)
	if _, ok := s.Differential.Result.Find(did); did == differential.Unrecognized || !ok {
		return ErrUnknownCandidate
	}
	if s.Differential.PrimaryID != did {
		s.Differential.PrimaryID = did
		invalidateFrom(s, StageValidation)
	}
	s.UpdatedAt = now.UTC()
	return nil
}

func ToggleTest(s *Session, id labtest.TestID, selected bool, now time.Time) error {
	if err := requireStage(s, StageValidation); err != nil {
		return err
	}
	tests, ok := labtest.Toggle(s.Validation.Tests, id, selected)
	if !ok {
		return ErrUnknownTest
	}
	s.Validation.Tests = tests
	invalidateFrom(s, StageResults)
	s.UpdatedAt = now.UTC()
	return nil
}

func SetPhysicianDiagnosis(s *Session, diagnosis, notes string, now time.Time) error {
	if err := requireStage(s, StageValidation); err != nil {
		return err
	}
	s.Validation.PhysicianDiagnosis = strings.TrimSpace(diagnosis)
	s.Validation.PhysicianNotes = notes
	invalidateFrom(s, StageResults)
	s.UpdatedAt = now.UTC()
	return nil
}

// RecordResult stores the outcome of one ordered test.
func RecordResult(s *Session, id labtest.TestID, value, notes, resultDate string, now time.Time) error {
	if err := requireStage(s, StageResults); err != nil {
		return err
	}
	for i := range s.Results.Results {
		if s.Results.Results[i].TestID != id {
			continue
		}
		s.Results.Results[i].Result = string(labtest.NormalizeResult(value))
		s.Results.Results[i].Notes = notes
		s.Results.Results[i].ResultDate = resultDate
		s.UpdatedAt = now.UTC()
		return nil
	}
	return ErrUnknownTest
}

func SetFinalDiagnosis(s *Session, diagnosis string, now time.Time) error {
	if err := requireStage(s, StageResults); err != nil {
		return err
	}
	s.Results.FinalDiagnosis = strings.TrimSpace(diagnosis)
	s.UpdatedAt = now.UTC()
	return nil
}

func Confirm(s *Session, confirmed bool, now time.Time) error {
	if err := requireStage(s, StageResults); err != nil {
		return err
	}
	s.Results.Confirmed = confirmed
	s.UpdatedAt = now.UTC()
	return nil
}
