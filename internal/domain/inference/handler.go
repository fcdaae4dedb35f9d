package inference

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/healthmetrica/cdss/internal/domain/differential"
	"github.com/healthmetrica/cdss/internal/domain/labtest"
	"github.com/healthmetrica/cdss/internal/domain/symptom"
)

// Observer receives per-endpoint processing durations.
type Observer interface {
	ObserveInference(endpoint string, d time.Duration)
}

// Handler serves the mock inference endpoints. Each request waits for the
// configured latency before answering.
type Handler struct {
	latency  time.Duration
	observer Observer
	now      func() time.Time
}

func NewHandler(latency time.Duration, observer Observer) *Handler {
	return &Handler{latency: latency, observer: observer, now: time.Now}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/diagnose", h.Diagnose)
	g.POST("/lab-tests", h.OrderLabTests)
	g.POST("/nlp/extract-symptoms", h.ExtractSymptoms)
}

// wait blocks for the simulated latency or until ctx ends.
func (h *Handler) wait(ctx context.Context) error {
	if h.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(h.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (h *Handler) observe(endpoint string, start time.Time) time.Duration {
	d := time.Since(start)
	if h.observer != nil {
		h.observer.ObserveInference(endpoint, d)
	}
	return d
}

// bindRequest binds and validates req, returning the message to report.
func bindRequest(c echo.Context, req interface{}) (string, bool) {
	if err := c.Bind(req); err != nil {
		return "invalid request body", false
	}
	if c.Echo().Validator == nil {
		return "", true
	}
	if err := c.Validate(req); err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			return fmt.Sprint(he.Message), false
		}
		return err.Error(), false
	}
	return "", true
}

func cancelled[T any](c echo.Context, err error) error {
	return c.JSON(http.StatusServiceUnavailable, failure[T]("request cancelled: "+err.Error()))
}

func (h *Handler) Diagnose(c echo.Context) error {
	start := time.Now()
	var req DiagnoseRequest
	if msg, ok := bindRequest(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, failure[DiagnoseResponse](msg))
	}
	if err := h.wait(c.Request().Context()); err != nil {
		return cancelled[DiagnoseResponse](c, err)
	}

	result := differential.AnalyzeTags(req.Symptoms, req.turns(), req.patient(), h.now())
	elapsed := h.observe("diagnose", start)
	return c.JSON(http.StatusOK, succeed(DiagnoseResponse{
		Diagnoses:      result.Candidates,
		Confidence:     result.Confidence,
		Rationale:      result.Rationale,
		ProcessingTime: processingTime(elapsed),
		ModelVersion:   result.ModelVersion,
		Timestamp:      result.GeneratedAt,
	}))
}

func (h *Handler) OrderLabTests(c echo.Context) error {
	start := time.Now()
	var req LabOrderRequest
	if msg, ok := bindRequest(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, failure[labtest.Order](msg))
	}
	if err := h.wait(c.Request().Context()); err != nil {
		return cancelled[labtest.Order](c, err)
	}

	order := labtest.PlaceOrder(req.testIDs(), req.PatientID, labtest.ParseUrgency(req.Priority), h.now())
	h.observe("lab-tests", start)
	return c.JSON(http.StatusOK, succeed(order))
}

func (h *Handler) ExtractSymptoms(c echo.Context) error {
	start := time.Now()
	var req ExtractRequest
	if msg, ok := bindRequest(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, failure[ExtractResponse](msg))
	}
	if err := h.wait(c.Request().Context()); err != nil {
		return cancelled[ExtractResponse](c, err)
	}

	found := symptom.Extract(req.Text)
	elapsed := h.observe("extract-symptoms", start)
	return c.JSON(http.StatusOK, succeed(ExtractResponse{
		Symptoms:       found.Strings(),
		Entities:       symptom.ExtractEntities(req.Text),
		Confidence:     NLPConfidence,
		ProcessingTime: processingTime(elapsed),
		ModelVersion:   NLPModelVersion,
	}))
}
