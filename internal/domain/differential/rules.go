package differential

import (
	"fmt"
	"sort"
	"time"

	"github.com/healthmetrica/cdss/internal/domain/symptom"
)

// ModelVersion is reported with every analysis.
const ModelVersion = "HealthMetrica-AI-v2.1"

const (
	baseConfidence = 60
	perSymptom     = 5
	maxConfidence  = 95
)

type matchRule struct {
	diagnosis DiagnosisID
	match     func(symptom.Set) bool
}

func feverAndHeadache(s symptom.Set) bool {
	return s.Contains(symptom.Fever) && s.Contains(symptom.Headache)
}

var matchRules = []matchRule{
	{Dengue, func(s symptom.Set) bool {
		return feverAndHeadache(s) && s.ContainsAny(symptom.MusclePain, symptom.JointPain)
	}},
	{Influenza, func(s symptom.Set) bool {
		return feverAndHeadache(s) && s.ContainsAny(symptom.Cough, symptom.Fatigue)
	}},
	{Meningitis, func(s symptom.Set) bool {
		return feverAndHeadache(s) && s.ContainsAny(symptom.NeckStiffness, symptom.Confusion)
	}},
	{Gastroenteritis, func(s symptom.Set) bool {
		return s.ContainsAny(symptom.Nausea, symptom.Vomiting)
	}},
}

var fallback = []DiagnosisID{Influenza, Gastroenteritis}

// Generate ranks the diagnoses whose rules match symptoms. When nothing
// matches the influenza/gastroenteritis pair is returned. The dialogue is
// accepted as an input signal but does not change the ranking.
func Generate(symptoms symptom.Set, dialogue []Turn) []Candidate {
	var ids []DiagnosisID
	for _, r := range matchRules {
		if r.match(symptoms) && !containsID(ids, r.diagnosis) {
			ids = append(ids, r.diagnosis)
		}
	}
	if len(ids) == 0 {
		ids = fallback
	}

	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, Lookup(id).Candidate())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return bankIndex(out[i].ID) < bankIndex(out[j].ID)
	})
	return out
}

// Confidence is min(95, 60 + 5n). Negative counts are treated as zero.
func Confidence(n int) int {
	if n < 0 {
		n = 0
	}
	c := baseConfidence + perSymptom*n
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}

// Analyze runs Generate and attaches the confidence and rationale.
func Analyze(symptoms symptom.Set, dialogue []Turn, patient PatientContext, now time.Time) Result {
	return analyze(symptoms, symptoms.Len(), dialogue, patient, now)
}

// AnalyzeTags is Analyze over client-supplied tags. Matching uses the
// recognised tags, while confidence and rationale count every tag the
// client reported, duplicates and unknown tags included.
func AnalyzeTags(tags []string, dialogue []Turn, patient PatientContext, now time.Time) Result {
	return analyze(symptom.Parse(tags), len(tags), dialogue, patient, now)
}

func analyze(symptoms symptom.Set, reported int, dialogue []Turn, patient PatientContext, now time.Time) Result {
	location := patient.Location
	if location == "" {
		location = "not specified"
	}
	answered := 0
	for _, t := range dialogue {
		if t.Answer != "" {
			answered++
		}
	}

	return Result{
		Candidates: Generate(symptoms, dialogue),
		Confidence: Confidence(reported),
		Rationale: []string{
			fmt.Sprintf("Analyzed %d primary symptoms", reported),
			fmt.Sprintf("Considered patient demographics (age: %s, location: %s)", patient.Age, location),
			fmt.Sprintf("Incorporated %d additional clinical details", answered),
			"Applied epidemiological data and clinical guidelines",
		},
		ModelVersion: ModelVersion,
		GeneratedAt:  now.UTC(),
	}
}

func containsID(ids []DiagnosisID, id DiagnosisID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
