package differential

import (
	"strings"
	"testing"
	"time"

	"github.com/healthmetrica/cdss/internal/domain/symptom"
)

func ids(cands []Candidate) []DiagnosisID {
	out := make([]DiagnosisID, len(cands))
	for i, c := range cands {
		out[i] = c.ID
	}
	return out
}

func equalIDs(a, b []DiagnosisID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		symptoms symptom.Set
		want     []DiagnosisID
	}{
		{
			name:     "dengue pattern",
			symptoms: symptom.NewSet(symptom.Fever, symptom.Headache, symptom.MusclePain),
			want:     []DiagnosisID{Dengue},
		},
		{
			name:     "dengue via joint pain",
			symptoms: symptom.NewSet(symptom.Fever, symptom.Headache, symptom.JointPain),
			want:     []DiagnosisID{Dengue},
		},
		{
			name:     "influenza pattern",
			symptoms: symptom.NewSet(symptom.Fever, symptom.Headache, symptom.Cough),
			want:     []DiagnosisID{Influenza},
		},
		{
			name:     "meningitis pattern",
			symptoms: symptom.NewSet(symptom.Fever, symptom.Headache, symptom.NeckStiffness),
			want:     []DiagnosisID{Meningitis},
		},
		{
			name:     "gastro only",
			symptoms: symptom.NewSet(symptom.Vomiting),
			want:     []DiagnosisID{Gastroenteritis},
		},
		{
			name: "union sorted by probability",
			symptoms: symptom.NewSet(symptom.Fever, symptom.Headache, symptom.MusclePain,
				symptom.Fatigue, symptom.Confusion, symptom.Nausea),
			want: []DiagnosisID{Dengue, Influenza, Gastroenteritis, Meningitis},
		},
		{
			name:     "fallback when nothing matches",
			symptoms: symptom.NewSet(symptom.Rash),
			want:     []DiagnosisID{Influenza, Gastroenteritis},
		},
		{
			name:     "fallback for empty set",
			symptoms: nil,
			want:     []DiagnosisID{Influenza, Gastroenteritis},
		},
		{
			name:     "fever alone is not enough",
			symptoms: symptom.NewSet(symptom.Fever, symptom.MusclePain),
			want:     []DiagnosisID{Influenza, Gastroenteritis},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Generate(tt.symptoms, nil))
			if !equalIDs(got, tt.want) {
				t.Errorf("Generate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerate_SortedDescending(t *testing.T) {
	all := symptom.NewSet(symptom.Fever, symptom.Headache, symptom.MusclePain,
		symptom.Cough, symptom.NeckStiffness, symptom.Vomiting)
	got := Generate(all, nil)
	if len(got) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Probability < got[i].Probability {
			t.Errorf("candidates not sorted at %d: %d < %d", i, got[i-1].Probability, got[i].Probability)
		}
	}
}

func TestGenerate_DialogueDoesNotChangeRanking(t *testing.T) {
	s := symptom.NewSet(symptom.Fever, symptom.Headache, symptom.Cough)
	dialogue := []Turn{{Question: "q", Answer: "Recent travel"}}
	if !equalIDs(ids(Generate(s, nil)), ids(Generate(s, dialogue))) {
		t.Error("dialogue changed the ranking")
	}
}

func TestGenerate_ReturnsCopies(t *testing.T) {
	got := Generate(symptom.NewSet(symptom.Nausea), nil)
	got[0].NextSteps[0] = "mutated"
	if Lookup(Gastroenteritis).NextSteps[0] == "mutated" {
		t.Error("Generate leaked bank storage")
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{-3, 60},
		{0, 60},
		{1, 65},
		{4, 80},
		{7, 95},
		{8, 95},
		{100, 95},
	}
	for _, tt := range tests {
		if got := Confidence(tt.n); got != tt.want {
			t.Errorf("Confidence(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestAnalyze(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := symptom.NewSet(symptom.Fever, symptom.Headache, symptom.MusclePain)
	dialogue := []Turn{
		{Question: "a", Answer: "Recent travel"},
		{Question: "b", Answer: "High (103°F+)"},
	}
	res := Analyze(s, dialogue, PatientContext{Age: "34"}, now)

	if res.Confidence != 75 {
		t.Errorf("Confidence = %d, want 75", res.Confidence)
	}
	if res.ModelVersion != ModelVersion {
		t.Errorf("ModelVersion = %q", res.ModelVersion)
	}
	if !res.GeneratedAt.Equal(now) {
		t.Errorf("GeneratedAt = %v, want %v", res.GeneratedAt, now)
	}
	if len(res.Rationale) != 4 {
		t.Fatalf("expected 4 rationale lines, got %d", len(res.Rationale))
	}
	if !strings.Contains(res.Rationale[1], "location: not specified") {
		t.Errorf("unexpected rationale line: %q", res.Rationale[1])
	}
	if !strings.Contains(res.Rationale[2], "Incorporated 2") {
		t.Errorf("unexpected rationale line: %q", res.Rationale[2])
	}
	if _, ok := res.Find(Dengue); !ok {
		t.Error("expected dengue among candidates")
	}
}

func TestAnalyzeTags_CountsReportedTags(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	res := AnalyzeTags([]string{"fever", "xyz", "Fever"}, nil, PatientContext{}, now)
	if res.Confidence != 75 {
		t.Errorf("Confidence = %d, want 75", res.Confidence)
	}
	if res.Rationale[0] != "Analyzed 3 primary symptoms" {
		t.Errorf("rationale = %q", res.Rationale[0])
	}
	matched := Analyze(symptom.NewSet(symptom.Fever), nil, PatientContext{}, now)
	if len(res.Candidates) != len(matched.Candidates) || res.Candidates[0].ID != matched.Candidates[0].ID {
		t.Errorf("candidates = %v, want those for the recognised tags", res.Candidates)
	}
}

func TestLookup_Unrecognized(t *testing.T) {
	d := Lookup("smallpox")
	if d.ID != Unrecognized {
		t.Errorf("Lookup(unknown).ID = %q, want %q", d.ID, Unrecognized)
	}
	if ParseDiagnosisID("dengue") != Dengue {
		t.Error("ParseDiagnosisID(dengue) should be Dengue")
	}
	if ParseDiagnosisID("nope") != Unrecognized {
		t.Error("ParseDiagnosisID(nope) should be Unrecognized")
	}
}

func TestAll_BankOrder(t *testing.T) {
	got := All()
	want := []DiagnosisID{Dengue, Influenza, Meningitis, Gastroenteritis}
	if len(got) != len(want) {
		t.Fatalf("All() returned %d descriptors", len(got))
	}
	for i, d := range got {
		if d.ID != want[i] {
			t.Errorf("All()[%d] = %q, want %q", i, d.ID, want[i])
		}
	}
}
