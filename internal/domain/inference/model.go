package inference

import (
	"bytes"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/healthmetrica/cdss/internal/domain/differential"
	"github.com/healthmetrica/cdss/internal/domain/labtest"
	"github.com/healthmetrica/cdss/internal/domain/symptom"
)

const (
	NLPModelVersion = "HealthMetrica-NLP-v1.3"
	NLPConfidence   = 0.87
)

// Envelope wraps every inference response.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func succeed[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: &data}
}

func failure[T any](msg string) Envelope[T] {
	return Envelope[T]{Error: msg}
}

// FlexString accepts either a JSON string or a JSON number.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return err
	}
	*f = FlexString(b)
	return nil
}

type PatientData struct {
	Age      FlexString `json:"age"`
	Gender   string     `json:"gender"`
	Location string     `json:"location"`
}

type ChatMessage struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

type ChatData struct {
	Messages []ChatMessage `json:"messages"`
}

type DiagnoseRequest struct {
	Symptoms    []string    `json:"symptoms" validate:"required"`
	PatientData PatientData `json:"patientData"`
	ChatData    ChatData    `json:"chatData"`
}

func (r DiagnoseRequest) turns() []differential.Turn {
	out := make([]differential.Turn, 0, len(r.ChatData.Messages))
	for _, m := range r.ChatData.Messages {
		out = append(out, differential.Turn{Question: m.Question, Answer: m.Answer, Category: m.Category})
	}
	return out
}

func (r DiagnoseRequest) patient() differential.PatientContext {
	return differential.PatientContext{
		Age:      string(r.PatientData.Age),
		Gender:   r.PatientData.Gender,
		Location: r.PatientData.Location,
	}
}

type DiagnoseResponse struct {
	Diagnoses      []differential.Candidate `json:"diagnoses"`
	Confidence     int                      `json:"confidence"`
	Rationale      []string                 `json:"rationale"`
	ProcessingTime string                   `json:"processingTime"`
	ModelVersion   string                   `json:"modelVersion"`
	Timestamp      time.Time                `json:"timestamp"`
}

type LabOrderRequest struct {
	TestIDs   []string `json:"testIds" validate:"required,min=1,dive,notblank"`
	PatientID string   `json:"patientId"`
	Priority  string   `json:"priority" validate:"omitempty,oneof=routine urgent stat"`
}

func (r LabOrderRequest) testIDs() []labtest.TestID {
	out := make([]labtest.TestID, len(r.TestIDs))
	for i, id := range r.TestIDs {
		out[i] = labtest.TestID(id)
	}
	return out
}

type ExtractRequest struct {
	Text string `json:"text" validate:"required,notblank"`
}

type ExtractResponse struct {
	Symptoms       []string         `json:"symptoms"`
	Entities       symptom.Entities `json:"entities"`
	Confidence     float64          `json:"confidence"`
	ProcessingTime string           `json:"processingTime"`
	ModelVersion   string           `json:"modelVersion"`
}

func processingTime(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}
