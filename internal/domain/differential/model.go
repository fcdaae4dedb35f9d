package differential

import (
	"time"

	"github.com/healthmetrica/cdss/internal/domain/symptom"
)

// DiagnosisID identifies an entry of the diagnosis bank.
type DiagnosisID string

const (
	Dengue          DiagnosisID = "dengue"
	Influenza       DiagnosisID = "influenza"
	Meningitis      DiagnosisID = "meningitis"
	Gastroenteritis DiagnosisID = "gastroenteritis"
	// Unrecognized stands in for any id outside the bank.
	Unrecognized DiagnosisID = "unrecognized"
)

// ParseDiagnosisID maps s onto the closed set of ids. Unknown values map to
// Unrecognized.
func ParseDiagnosisID(s string) DiagnosisID {
	switch id := DiagnosisID(s); id {
	case Dengue, Influenza, Meningitis, Gastroenteritis:
		return id
	default:
		return Unrecognized
	}
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Descriptor is the immutable bank record for one diagnosis.
type Descriptor struct {
	ID                  DiagnosisID
	Name                string
	ICD10               string
	Probability         int
	Severity            Severity
	Description         string
	KeySymptoms         symptom.Set
	ContributingFactors []string
	RiskFactors         []string
	NextSteps           []string
}

// Candidate is one ranked entry of a differential.
type Candidate struct {
	ID                  DiagnosisID `json:"id"`
	Name                string      `json:"name"`
	ICD10               string      `json:"icd10,omitempty"`
	Probability         int         `json:"probability"`
	Severity            Severity    `json:"severity"`
	Description         string      `json:"description"`
	KeySymptoms         symptom.Set `json:"keySymptoms"`
	ContributingFactors []string    `json:"contributingFactors,omitempty"`
	RiskFactors         []string    `json:"riskFactors"`
	NextSteps           []string    `json:"nextSteps"`
}

// Candidate returns a copy of d safe to hand to callers.
func (d Descriptor) Candidate() Candidate {
	return Candidate{
		ID:                  d.ID,
		Name:                d.Name,
		ICD10:               d.ICD10,
		Probability:         d.Probability,
		Severity:            d.Severity,
		Description:         d.Description,
		KeySymptoms:         append(symptom.Set(nil), d.KeySymptoms...),
		ContributingFactors: append([]string(nil), d.ContributingFactors...),
		RiskFactors:         append([]string(nil), d.RiskFactors...),
		NextSteps:           append([]string(nil), d.NextSteps...),
	}
}

// Turn is one answered dialogue exchange.
type Turn struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Category   string    `json:"category,omitempty"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// PatientContext carries the demographics quoted in the rationale.
type PatientContext struct {
	Age      string `json:"age"`
	Gender   string `json:"gender,omitempty"`
	Location string `json:"location,omitempty"`
}

// Result is the full output of an analysis run.
type Result struct {
	Candidates   []Candidate `json:"diagnoses"`
	Confidence   int         `json:"confidence"`
	Rationale    []string    `json:"rationale"`
	ModelVersion string      `json:"modelVersion"`
	GeneratedAt  time.Time   `json:"timestamp"`
}

// Find returns the candidate with id, if present.
func (r *Result) Find(id DiagnosisID) (Candidate, bool) {
	if r == nil {
		return Candidate{}, false
	}
	for _, c := range r.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}
