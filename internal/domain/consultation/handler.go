package consultation

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthmetrica/cdss/internal/domain/dialogue"
	"github.com/healthmetrica/cdss/internal/domain/labtest"
	"github.com/healthmetrica/cdss/internal/platform/auth"
	"github.com/healthmetrica/cdss/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "physician"))
	g.POST("/consultations", h.Create)
	g.GET("/consultations/:id", h.Get)
	g.PUT("/consultations/:id/intake", h.UpdateIntake)
	g.POST("/consultations/:id/advance", h.Advance)
	g.POST("/consultations/:id/retreat", h.Retreat)
	g.POST("/consultations/:id/skip-dialogue", h.SkipDialogue)
	g.POST("/consultations/:id/dialogue/answers", h.Answer)
	g.PUT("/consultations/:id/primary", h.SelectPrimary)
	g.PUT("/consultations/:id/tests/:testId", h.ToggleTest)
	g.PUT("/consultations/:id/diagnosis", h.SetDiagnosis)
	g.PUT("/consultations/:id/results/:testId", h.RecordResult)
	g.POST("/consultations/:id/confirm", h.Confirm)
	g.POST("/consultations/:id/complete", h.Complete)

	g.GET("/archive", h.ListArchive)
	g.GET("/archive/:id", h.GetArchive)
}

// -- Request / response types --

type IntakeRequest struct {
	Patient   Patient `json:"patient"`
	Narrative string  `json:"narrative"`
}

type RetreatRequest struct {
	Stage string `json:"stage" validate:"required,oneof=intake dialogue differential validation results"`
}

type AnswerRequest struct {
	Answer string `json:"answer" validate:"required,notblank"`
}

type PrimaryRequest struct {
	PrimaryID string `json:"primaryId" validate:"required"`
}

type ToggleRequest struct {
	Selected *bool `json:"selected" validate:"required"`
}

type DiagnosisRequest struct {
	Diagnosis string `json:"diagnosis" validate:"required,notblank"`
	Notes     string `json:"notes"`
}

type ResultRequest struct {
	Value      string `json:"value" validate:"required,notblank"`
	Notes      string `json:"notes"`
	ResultDate string `json:"resultDate"`
}

type ConfirmRequest struct {
	Confirmed      bool   `json:"confirmed"`
	FinalDiagnosis string `json:"finalDiagnosis"`
}

// SessionView is the API representation of a consultation.
type SessionView struct {
	*Session
	CurrentQuestion *dialogue.Question `json:"currentQuestion,omitempty"`
	EstimatedCost   int                `json:"estimatedCost"`
}

func newView(s *Session) SessionView {
	v := SessionView{Session: s}
	if s.Stage == StageDialogue {
		v.CurrentQuestion = CurrentQuestion(s)
	}
	if s.Validation != nil {
		v.EstimatedCost = labtest.TotalEstimatedCost(s.Validation.Tests)
	}
	return v
}

type guardResponse struct {
	Error   string   `json:"error"`
	From    Stage    `json:"from"`
	To      Stage    `json:"to"`
	Reasons []string `json:"reasons"`
}

// respondError maps service errors onto HTTP responses.
func respondError(c echo.Context, err error) error {
	var ge *GuardError
	switch {
	case errors.As(err, &ge):
		return c.JSON(http.StatusUnprocessableEntity, guardResponse{
			Error:   "transition not allowed",
			From:    ge.From,
			To:      ge.To,
			Reasons: ge.Reasons,
		})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
	case errors.Is(err, ErrUnknownCandidate), errors.Is(err, ErrUnknownTest),
		errors.Is(err, dialogue.ErrEmptyAnswer), errors.Is(err, dialogue.ErrScriptComplete):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func bindValid(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.Validate(req)
}

// -- Handlers --

func (h *Handler) Create(c echo.Context) error {
	var req IntakeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.Create(c.Request().Context(), req.Patient, req.Narrative)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, newView(sess))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sess, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newView(sess))
}

func (h *Handler) UpdateIntake(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req IntakeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.UpdateIntake(c.Request().Context(), id, req.Patient, req.Narrative)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newView(sess))
}

func (h *Handler) Advance(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sess, err := h.svc.Advance(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newView(sess))
}

func (h *Handler) Retreat(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req RetreatRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	stage, _ := ParseStage(req.Stage)
	sess, err := h.svc.Retreat(c.Request().Context(), id, stage)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newView(sess))
}

func (h *Handler) SkipDialogue(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sess, err := h.svc.SkipDialogue(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newView(sess))
}

func (h *Handler) Answer(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req AnswerRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	sess, next, err := h.svc.Answer(c.Request().Context(), id, req.Answer)
	if err != nil {
		return respondError(c, err)
	}
	v := newView(sess)
	v.CurrentQuestion = next
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) SelectPrimary(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req PrimaryRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	sess, err := h.svc.SelectPrimary(c.Request().Context(), id, req.PrimaryID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newView(sess))
}

func (h *Handler) ToggleTest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ToggleRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	sess, err := h.svc.ToggleTest(c.Request().Context(), id, labtest.TestID(c.Param("testId")), *req.Selected)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newView(sess))
}

func (h *Handler) SetDiagnosis(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req DiagnosisRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	sess, err := h.svc.SetPhysicianDiagnosis(c.Request().Context(), id, req.Diagnosis, req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newView(sess))
}

func (h *Handler) RecordResult(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ResultRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	sess, err := h.svc.RecordResult(c.Request().Context(), id, labtest.TestID(c.Param("testId")),
		req.Value, req.Notes, req.ResultDate)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newView(sess))
}

func (h *Handler) Confirm(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.Confirm(c.Request().Context(), id, req.Confirmed, req.FinalDiagnosis)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newView(sess))
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Complete(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListArchive(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListArchived(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) GetArchive(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.GetArchived(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "archived consultation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}
