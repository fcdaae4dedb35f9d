package labtest

import (
	"strings"
	"time"
)

// TestID identifies a lab test in the catalog.
type TestID string

const (
	DengueNS1      TestID = "dengue_ns1"
	PlateletCount  TestID = "platelet_count"
	DengueIgGIgM   TestID = "dengue_igg_igm"
	RapidFlu       TestID = "rapid_flu"
	ChestXray      TestID = "chest_xray"
	LumbarPuncture TestID = "lumbar_puncture"
	BloodCulture   TestID = "blood_culture"
	CTHead         TestID = "ct_head"
	StoolAnalysis  TestID = "stool_analysis"
	Electrolytes   TestID = "electrolytes"
	CBC            TestID = "cbc"
	CRP            TestID = "crp"
)

type CostEffectiveness string

const (
	CostLow    CostEffectiveness = "low"
	CostMedium CostEffectiveness = "medium"
	CostHigh   CostEffectiveness = "high"
)

type Urgency string

const (
	Routine Urgency = "routine"
	Urgent  Urgency = "urgent"
	Stat    Urgency = "stat"
)

// ParseUrgency returns the urgency named by s, defaulting to Routine.
func ParseUrgency(s string) Urgency {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(s))); u {
	case Urgent, Stat:
		return u
	default:
		return Routine
	}
}

// Recommendation is a suggested test together with its selection flag.
type Recommendation struct {
	ID                TestID            `json:"id"`
	Name              string            `json:"name"`
	Reason            string            `json:"reason"`
	CostEffectiveness CostEffectiveness `json:"costEffectiveness"`
	Urgency           Urgency           `json:"urgency"`
	EstimatedCost     string            `json:"estimatedCost"`
	TurnaroundTime    string            `json:"turnaroundTime"`
	Selected          bool              `json:"selected"`
}

// OrderLine is the per-test status returned when an order is placed.
type OrderLine struct {
	TestID         TestID `json:"testId"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	ExpectedResult string `json:"expectedResult,omitempty"`
	TurnaroundTime string `json:"turnaroundTime,omitempty"`
}

type Order struct {
	OrderID             string      `json:"orderId"`
	PatientID           string      `json:"patientId,omitempty"`
	Priority            Urgency     `json:"priority"`
	Status              string      `json:"status"`
	EstimatedCompletion time.Time   `json:"estimatedCompletion"`
	Tests               []OrderLine `json:"tests"`
	TotalCost           int         `json:"totalCost"`
}

// ResultValue is one of the values a clinician picks when recording a
// result. Free text outside the list is accepted.
type ResultValue string

const (
	ResultPositive     ResultValue = "positive"
	ResultNegative     ResultValue = "negative"
	ResultElevated     ResultValue = "elevated"
	ResultNormal       ResultValue = "normal"
	ResultLow          ResultValue = "low"
	ResultHigh         ResultValue = "high"
	ResultPending      ResultValue = "pending"
	ResultInconclusive ResultValue = "inconclusive"
)

var ResultValues = []ResultValue{
	ResultPositive, ResultNegative, ResultElevated, ResultNormal,
	ResultLow, ResultHigh, ResultPending, ResultInconclusive,
}

// NormalizeResult trims v and lower-cases it when it names a listed value.
func NormalizeResult(v string) ResultValue {
	v = strings.TrimSpace(v)
	lower := ResultValue(strings.ToLower(v))
	for _, rv := range ResultValues {
		if rv == lower {
			return rv
		}
	}
	return ResultValue(v)
}
