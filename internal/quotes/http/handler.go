package quoteshttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/bizportal/internal/integrations/quoteapi"
	"github.com/odyssey-erp/bizportal/internal/platform/httpx"
	"github.com/odyssey-erp/bizportal/internal/quotes"
	"github.com/odyssey-erp/bizportal/internal/session"
)

type quoteService interface {
	Upsert(ctx context.Context, plan quotes.PlanSelection, store session.Store) (*quoteapi.Response, error)
}

type sessionDestroyer interface {
	Destroy(sess *session.Session)
}

// Handler exposes quote submission and the session writes that feed it.
type Handler struct {
	logger    *slog.Logger
	service   quoteService
	sessions  sessionDestroyer
	validator *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service quoteService, sessions sessionDestroyer) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		sessions:  sessions,
		validator: validator.New(),
	}
}

// MountRoutes registers quote and session endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/quotes", h.upsert)
	r.Post("/quotes/preview", h.preview)
	r.Route("/session", func(r chi.Router) {
		r.Put("/user", h.putUser)
		r.Put("/selected-company", h.putSelectedCompany)
		r.Delete("/", h.destroy)
	})
}

type userForm struct {
	Email     string           `json:"Email" validate:"omitempty,email"`
	Companies []map[string]any `json:"Companies" validate:"omitempty,dive,required"`
}

type selectedCompanyForm struct {
	CompanyID   any    `json:"CompanyID" validate:"required"`
	CompanyName string `json:"CompanyName" validate:"omitempty,max=255"`
}

type previewResponse struct {
	Payload      quotes.QuotePayload `json:"payload"`
	CompanyTier  string              `json:"companyTier"`
	Degradations []string            `json:"degradations"`
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, fmt.Errorf("%w: no session", httpx.ErrUnavailable))
		return
	}
	var plan quotes.PlanSelection
	if err := httpx.DecodeJSON(r, &plan); err != nil {
		httpx.RespondError(w, err)
		return
	}

	resp, err := h.service.Upsert(r.Context(), plan, sess)
	if err != nil {
		h.logger.Warn("quote upsert", slog.String("session_id", sess.SessionID()), slog.Any("error", err))
		httpx.RespondError(w, upstreamError(err))
		return
	}
	if !json.Valid(resp.Raw) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp.Raw)
		return
	}
	httpx.RawJSON(w, http.StatusOK, resp.Raw)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, fmt.Errorf("%w: no session", httpx.ErrUnavailable))
		return
	}
	var plan quotes.PlanSelection
	if err := httpx.DecodeJSON(r, &plan); err != nil {
		httpx.RespondError(w, err)
		return
	}
	build := quotes.BuildPayload(plan, sess)
	out := previewResponse{
		Payload:      build.Payload,
		CompanyTier:  build.CompanyTier.String(),
		Degradations: make([]string, 0, len(build.Degradations)),
	}
	for _, d := range build.Degradations {
		out.Degradations = append(out.Degradations, d.Stage)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) putUser(w http.ResponseWriter, r *http.Request) {
	var form userForm
	h.putValue(w, r, session.KeyUser, &form)
}

func (h *Handler) putSelectedCompany(w http.ResponseWriter, r *http.Request) {
	var form selectedCompanyForm
	h.putValue(w, r, session.KeySelectedCompany, &form)
}

// putValue validates the body against form and stores it verbatim, keeping fields the
// form does not know about.
func (h *Handler) putValue(w http.ResponseWriter, r *http.Request, key string, form any) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, fmt.Errorf("%w: no session", httpx.ErrUnavailable))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, httpx.MaxBodyBytes))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := json.Unmarshal(body, form); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s must be a JSON object", httpx.ErrValidation, key))
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, validationError(err))
		return
	}
	if err := sess.Set(key, json.RawMessage(body)); err != nil {
		h.logger.Error("store session value", slog.String("key", key), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) destroy(w http.ResponseWriter, r *http.Request) {
	if sess := session.FromContext(r.Context()); sess != nil {
		h.sessions.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func upstreamError(err error) error {
	var apiErr *quoteapi.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return fmt.Errorf("%w: %s", httpx.ErrUpstream, apiErr.Message)
	}
	return fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("%w: %s failed %s", httpx.ErrValidation, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
}
