package consultation

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/healthmetrica/cdss/internal/domain/dialogue"
	"github.com/healthmetrica/cdss/internal/domain/differential"
	"github.com/healthmetrica/cdss/internal/domain/labtest"
	"github.com/healthmetrica/cdss/internal/domain/symptom"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const dengueNarrative = "High fever for 3 days, severe headache and muscle pain"

func validPatient() Patient {
	return Patient{Name: "Ana Souza", Age: "34", Gender: "female", Location: "Recife"}
}

func snapshot(t *testing.T, s *Session) string {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return string(b)
}

func mustAdvance(t *testing.T, s *Session) {
	t.Helper()
	if err := Advance(s, t0); err != nil {
		t.Fatalf("Advance from %s: %v", s.Stage, err)
	}
}

func answerN(t *testing.T, s *Session, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := Answer(s, "Recent travel", t0); err != nil {
			t.Fatalf("Answer %d: %v", i, err)
		}
	}
}

// sessionAt drives a dengue consultation to the requested stage.
func sessionAt(t *testing.T, stage Stage) *Session {
	t.Helper()
	s := Start(validPatient(), dengueNarrative, t0)
	if stage == StageIntake {
		return s
	}
	mustAdvance(t, s)
	if stage == StageDialogue {
		return s
	}
	answerN(t, s, 3)
	mustAdvance(t, s)
	if stage == StageDifferential {
		return s
	}
	mustAdvance(t, s)
	if stage == StageValidation {
		return s
	}
	mustAdvance(t, s)
	if stage == StageResults {
		return s
	}
	for _, r := range s.Results.Results {
		if err := RecordResult(s, r.TestID, "positive", "", "2026-03-01", t0); err != nil {
			t.Fatalf("RecordResult: %v", err)
		}
	}
	if err := Confirm(s, true, t0); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	mustAdvance(t, s)
	return s
}

func guardErr(t *testing.T, err error) *GuardError {
	t.Helper()
	var ge *GuardError
	if !errors.As(err, &ge) {
		t.Fatalf("expected *GuardError, got %v", err)
	}
	return ge
}

func TestStart(t *testing.T) {
	s := Start(validPatient(), dengueNarrative, t0)
	if s.Stage != StageIntake {
		t.Errorf("Stage = %s", s.Stage)
	}
	want := symptom.Set{symptom.Fever, symptom.Headache, symptom.Pain, symptom.MusclePain}
	if !reflect.DeepEqual(s.Symptoms, want) {
		t.Errorf("Symptoms = %v, want %v", s.Symptoms, want)
	}
	if len(s.Entities.Durations) != 1 || s.Entities.Durations[0] != "3 days" {
		t.Errorf("Entities = %+v", s.Entities)
	}
}

func TestAdvance_IntakeGuard(t *testing.T) {
	tests := []struct {
		name      string
		patient   Patient
		narrative string
		reasons   int
	}{
		{"missing demographics", Patient{}, dengueNarrative, 3},
		{"narrative of 19 characters", validPatient(), strings.Repeat("a", 19), 1},
		{"whitespace-only narrative", validPatient(), strings.Repeat(" ", 20), 1},
		{"narrative padded to 20", validPatient(), "   fever, headache   ", 1},
		{"blank name", Patient{Name: "  ", Age: "30", Gender: "male"}, dengueNarrative, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Start(tt.patient, tt.narrative, t0)
			before := snapshot(t, s)
			ge := guardErr(t, Advance(s, t0.Add(time.Minute)))
			if ge.From != StageIntake || ge.To != StageDialogue {
				t.Errorf("guard %s->%s", ge.From, ge.To)
			}
			if len(ge.Reasons) != tt.reasons {
				t.Errorf("reasons = %v, want %d", ge.Reasons, tt.reasons)
			}
			if snapshot(t, s) != before {
				t.Error("failed guard changed the session")
			}
		})
	}
}

func TestAdvance_IntakeAcceptsTwentyCharacters(t *testing.T) {
	s := Start(validPatient(), strings.Repeat("é", 20), t0)
	mustAdvance(t, s)
	if s.Stage != StageDialogue {
		t.Fatalf("Stage = %s", s.Stage)
	}
	if s.Dialogue == nil || s.Dialogue.Script.Len() == 0 {
		t.Error("dialogue script not built on entry")
	}
}

func TestAdvance_DialogueNeedsThreeAnswers(t *testing.T) {
	s := sessionAt(t, StageDialogue)
	answerN(t, s, 2)
	before := snapshot(t, s)
	ge := guardErr(t, Advance(s, t0))
	if ge.From != StageDialogue || ge.To != StageDifferential {
		t.Errorf("guard %s->%s", ge.From, ge.To)
	}
	if snapshot(t, s) != before {
		t.Error("failed guard changed the session")
	}

	answerN(t, s, 1)
	mustAdvance(t, s)
	if s.Differential == nil {
		t.Fatal("differential not computed on entry")
	}
	if s.Differential.PrimaryID != differential.Dengue {
		t.Errorf("default primary = %s, want dengue", s.Differential.PrimaryID)
	}
	if s.Differential.Result.Confidence != 80 {
		t.Errorf("confidence = %d, want 80", s.Differential.Result.Confidence)
	}
}

func TestAdvance_DifferentialToValidation(t *testing.T) {
	s := sessionAt(t, StageValidation)
	if s.Validation.PhysicianDiagnosis != "Dengue Fever" {
		t.Errorf("physician diagnosis prefill = %q", s.Validation.PhysicianDiagnosis)
	}
	if s.Validation.Tests[0].ID != labtest.DengueNS1 {
		t.Errorf("first test = %s", s.Validation.Tests[0].ID)
	}
}

func TestAdvance_ValidationGuard(t *testing.T) {
	s := sessionAt(t, StageValidation)
	for _, r := range labtest.Selected(s.Validation.Tests) {
		if err := ToggleTest(s, r.ID, false, t0); err != nil {
			t.Fatalf("ToggleTest: %v", err)
		}
	}
	if err := SetPhysicianDiagnosis(s, "  ", "", t0); err != nil {
		t.Fatalf("SetPhysicianDiagnosis: %v", err)
	}
	ge := guardErr(t, Advance(s, t0))
	if len(ge.Reasons) != 2 {
		t.Errorf("reasons = %v, want 2", ge.Reasons)
	}
}

func TestAdvance_ResultsRowsPerSelectedTest(t *testing.T) {
	s := sessionAt(t, StageResults)
	if len(s.Results.Results) != 3 {
		t.Fatalf("expected 3 result rows, got %d", len(s.Results.Results))
	}
	if s.Results.FinalDiagnosis != "Dengue Fever" {
		t.Errorf("final diagnosis = %q", s.Results.FinalDiagnosis)
	}
}

func TestAdvance_CompletionGuard(t *testing.T) {
	s := sessionAt(t, StageResults)
	ge := guardErr(t, Advance(s, t0))
	// three empty rows plus the missing confirmation
	if len(ge.Reasons) != 4 {
		t.Errorf("reasons = %v", ge.Reasons)
	}

	for _, r := range s.Results.Results {
		RecordResult(s, r.TestID, "negative", "", "", t0)
	}
	ge = guardErr(t, Advance(s, t0))
	if len(ge.Reasons) != 1 {
		t.Errorf("reasons = %v, want confirmation only", ge.Reasons)
	}
}

func TestAdvance_Completed(t *testing.T) {
	s := sessionAt(t, StageCompleted)
	if s.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
	guardErr(t, Advance(s, t0))
	guardErr(t, Retreat(s, StageIntake, t0))
}

func TestRetreat(t *testing.T) {
	s := sessionAt(t, StageValidation)
	if err := Retreat(s, StageDialogue, t0); err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	if s.Stage != StageDialogue {
		t.Errorf("Stage = %s", s.Stage)
	}
	if s.Validation == nil || s.Differential == nil {
		t.Error("retreat must keep collected data")
	}

	guardErr(t, Retreat(s, StageDialogue, t0))
	guardErr(t, Retreat(s, StageResults, t0))
	guardErr(t, Retreat(s, "nowhere", t0))
}

func TestRetreatAndAdvance_ReusesData(t *testing.T) {
	s := sessionAt(t, StageValidation)
	ToggleTest(s, labtest.CRP, true, t0)
	Retreat(s, StageDifferential, t0)
	mustAdvance(t, s)
	if r, _ := findTest(s.Validation.Tests, labtest.CRP); !r.Selected {
		t.Error("re-entering validation recomputed the tests")
	}
}

func findTest(tests []labtest.Recommendation, id labtest.TestID) (labtest.Recommendation, bool) {
	for _, r := range tests {
		if r.ID == id {
			return r, true
		}
	}
	return labtest.Recommendation{}, false
}

func TestSkipDialogue(t *testing.T) {
	s := Start(validPatient(), dengueNarrative, t0)
	if err := SkipDialogue(s, t0); err != nil {
		t.Fatalf("SkipDialogue: %v", err)
	}
	if s.Stage != StageDifferential {
		t.Errorf("Stage = %s", s.Stage)
	}
	if !s.Dialogue.Skipped || len(s.Dialogue.State.Turns) != 0 {
		t.Errorf("dialogue = %+v", s.Dialogue)
	}
	if !strings.Contains(s.Differential.Result.Rationale[2], "Incorporated 0") {
		t.Errorf("rationale = %v", s.Differential.Result.Rationale)
	}

	bad := Start(Patient{}, "short", t0)
	ge := guardErr(t, SkipDialogue(bad, t0))
	if ge.To != StageDifferential {
		t.Errorf("To = %s", ge.To)
	}
	guardErr(t, SkipDialogue(s, t0))
}

func TestAnswer(t *testing.T) {
	s := sessionAt(t, StageDialogue)
	first := CurrentQuestion(s)
	if first == nil || first.Category != "exposure" {
		t.Fatalf("first question = %+v", first)
	}
	next, err := Answer(s, "Both", t0)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if next == nil || next.Category != "severity" {
		t.Errorf("next = %+v", next)
	}
	if _, err := Answer(s, "", t0); !errors.Is(err, dialogue.ErrEmptyAnswer) {
		t.Errorf("expected ErrEmptyAnswer, got %v", err)
	}
	if dialogue.Answered(s.Dialogue.State) != 1 {
		t.Error("blank answer recorded")
	}
}

func TestAnswer_InvalidatesDownstream(t *testing.T) {
	s := sessionAt(t, StageValidation)
	Retreat(s, StageDialogue, t0)
	answerN(t, s, 1)
	if s.Differential != nil || s.Validation != nil || s.Results != nil {
		t.Error("new dialogue answer must invalidate downstream slices")
	}
}

func TestStageLocalEditsRejectedElsewhere(t *testing.T) {
	s := sessionAt(t, StageDifferential)
	ops := map[string]func() error{
		"answer":    func() error { _, err := Answer(s, "x", t0); return err },
		"toggle":    func() error { return ToggleTest(s, labtest.CBC, true, t0) },
		"diagnosis": func() error { return SetPhysicianDiagnosis(s, "x", "", t0) },
		"result":    func() error { return RecordResult(s, labtest.CBC, "normal", "", "", t0) },
		"confirm":   func() error { return Confirm(s, true, t0) },
		"final":     func() error { return SetFinalDiagnosis(s, "x", t0) },
		"intake":    func() error { return UpdateIntake(s, validPatient(), dengueNarrative, t0) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			before := snapshot(t, s)
			ge := guardErr(t, op())
			if ge.From != StageDifferential {
				t.Errorf("From = %s", ge.From)
			}
			if snapshot(t, s) != before {
				t.Error("rejected edit changed the session")
			}
		})
	}
}

func TestSelectPrimary(t *testing.T) {
	s := Start(validPatient(), "fever, headache, muscle pain and vomiting since yesterday", t0)
	SkipDialogue(s, t0)
	if len(s.Differential.Result.Candidates) != 2 {
		t.Fatalf("candidates = %v", s.Differential.Result.Candidates)
	}
	mustAdvance(t, s)
	Retreat(s, StageDifferential, t0)

	for _, id := range []string{"meningitis", "unrecognized", ""} {
		if err := SelectPrimary(s, id, t0); !errors.Is(err, ErrUnknownCandidate) {
			t.Errorf("SelectPrimary(%q): expected ErrUnknownCandidate, got %v", id, err)
		}
	}
	if err := SelectPrimary(s, "gastroenteritis", t0); err != nil {
		t.Fatalf("SelectPrimary: %v", err)
	}
	if s.Validation != nil {
		t.Error("changing the primary must invalidate validation")
	}
	mustAdvance(t, s)
	if s.Validation.Tests[0].ID != labtest.StoolAnalysis {
		t.Errorf("tests = %v", s.Validation.Tests)
	}
}

func TestToggleTest_UnknownAndInvalidation(t *testing.T) {
	s := sessionAt(t, StageResults)
	Retreat(s, StageValidation, t0)
	if err := ToggleTest(s, "mri", true, t0); !errors.Is(err, ErrUnknownTest) {
		t.Errorf("expected ErrUnknownTest, got %v", err)
	}
	if s.Results == nil {
		t.Fatal("unknown toggle must not invalidate results")
	}
	if err := ToggleTest(s, labtest.CRP, true, t0); err != nil {
		t.Fatalf("ToggleTest: %v", err)
	}
	if s.Results != nil {
		t.Error("toggle must invalidate results")
	}
	mustAdvance(t, s)
	if len(s.Results.Results) != 4 {
		t.Errorf("expected 4 rows after selecting CRP, got %d", len(s.Results.Results))
	}
}

func TestRecordResult(t *testing.T) {
	s := sessionAt(t, StageResults)
	if err := RecordResult(s, labtest.DengueNS1, " Positive ", "strong band", "2026-03-01", t0); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	row := s.Results.Results[0]
	if row.Result != "positive" || row.Notes != "strong band" || row.ResultDate != "2026-03-01" {
		t.Errorf("row = %+v", row)
	}
	if err := RecordResult(s, labtest.CRP, "normal", "", "", t0); !errors.Is(err, ErrUnknownTest) {
		t.Errorf("expected ErrUnknownTest for unordered test, got %v", err)
	}
	if err := SetFinalDiagnosis(s, "Dengue Fever (confirmed)", t0); err != nil {
		t.Fatalf("SetFinalDiagnosis: %v", err)
	}
	if s.Results.FinalDiagnosis != "Dengue Fever (confirmed)" {
		t.Errorf("final = %q", s.Results.FinalDiagnosis)
	}
}

func TestUpdateIntake_InvalidatesEverything(t *testing.T) {
	s := sessionAt(t, StageValidation)
	Retreat(s, StageIntake, t0)
	if err := UpdateIntake(s, validPatient(), "persistent cough and fatigue with fever and headache", t0); err != nil {
		t.Fatalf("UpdateIntake: %v", err)
	}
	if s.Dialogue != nil || s.Differential != nil || s.Validation != nil || s.Results != nil {
		t.Error("intake edit must clear downstream slices")
	}
	SkipDialogue(s, t0)
	if s.Differential.PrimaryID != differential.Influenza {
		t.Errorf("primary = %s, want influenza", s.Differential.PrimaryID)
	}
}

func TestRepair(t *testing.T) {
	s := sessionAt(t, StageResults)
	s.Validation = nil
	s.Results = nil
	Repair(s, t0)
	if s.Validation == nil || s.Results == nil {
		t.Fatal("Repair left slices missing")
	}
	if len(s.Results.Results) != 3 {
		t.Errorf("rows = %d", len(s.Results.Results))
	}
}

func TestRetreat_ReopensSkippedDialogue(t *testing.T) {
	s := Start(validPatient(), dengueNarrative, t0)
	if err := SkipDialogue(s, t0); err != nil {
		t.Fatalf("SkipDialogue: %v", err)
	}
	if err := Retreat(s, StageDialogue, t0); err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	q := CurrentQuestion(s)
	if q == nil {
		t.Fatal("reopened dialogue has no current question")
	}
	if s.Dialogue.Skipped {
		t.Error("reopened dialogue is still marked skipped")
	}
	next, err := Answer(s, "No recent travel", t0)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if next == nil || next.Prompt == q.Prompt {
		t.Errorf("next question = %+v", next)
	}
}

func TestRepair_RebuildsEmptyDialogueScript(t *testing.T) {
	s := sessionAt(t, StageDialogue)
	s.Dialogue = &DialogueSlice{Skipped: true}
	Repair(s, t0)
	if CurrentQuestion(s) == nil {
		t.Fatal("Repair left the dialogue without a script")
	}

	later := sessionAt(t, StageDifferential)
	later.Dialogue = nil
	Repair(later, t0)
	if later.Dialogue == nil || !later.Dialogue.Skipped {
		t.Errorf("dialogue past its stage = %+v", later.Dialogue)
	}
}

func TestNewArchiveRecord(t *testing.T) {
	s := sessionAt(t, StageCompleted)
	rec := NewArchiveRecord(s)
	if rec.SessionID != s.ID {
		t.Error("session id not carried")
	}
	if rec.PrimaryDiagnosis != "Dengue Fever" || rec.ICD10 != "A90" {
		t.Errorf("primary = %q %q", rec.PrimaryDiagnosis, rec.ICD10)
	}
	if rec.FinalDiagnosis != "Dengue Fever" {
		t.Errorf("final = %q", rec.FinalDiagnosis)
	}
	if rec.EstimatedCost != 60 {
		t.Errorf("estimated cost = %d, want 60", rec.EstimatedCost)
	}
	if rec.DialogueTurns != 3 || len(rec.Results) != 3 {
		t.Errorf("turns=%d results=%d", rec.DialogueTurns, len(rec.Results))
	}
	if !rec.CompletedAt.Equal(t0) {
		t.Errorf("CompletedAt = %v", rec.CompletedAt)
	}
}

func TestParseStage(t *testing.T) {
	if st, ok := ParseStage(" Dialogue "); !ok || st != StageDialogue {
		t.Errorf("ParseStage = %s %v", st, ok)
	}
	if _, ok := ParseStage("triage"); ok {
		t.Error("unexpected stage accepted")
	}
	if !StageIntake.Before(StageResults) || StageResults.Before(StageIntake) {
		t.Error("stage ordering broken")
	}
}
