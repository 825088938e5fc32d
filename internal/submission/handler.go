package submission

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"registration-service/internal/auth"
	"registration-service/internal/httputil"
	"registration-service/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/uptrace/bun/driver/pgdriver"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
		metrics:  metrics,
	}
}

// RegisterRoutes mounts the single application endpoint. authn guards POST;
// every other method is answered with 405 before authentication.
func (h *Handler) RegisterRoutes(router chi.Router, authn func(http.Handler) http.Handler) {
	router.HandleFunc("/application", h.MethodNotAllowed)
	router.With(authn).Post("/application", h.Dispatch)
}

func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST, OPTIONS")
	httputil.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// Dispatch decodes the action envelope and routes to the matching operation.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentity(r.Context())
	if !ok {
		httputil.RespondWithKind(w, http.StatusUnauthorized, string(KindUnauthorized), "unauthorized", nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.RespondWithKind(w, http.StatusBadRequest, string(KindValidation), "request body too large or unreadable", nil)
		return
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		httputil.RespondWithKind(w, http.StatusBadRequest, string(KindValidation), "invalid JSON body", nil)
		return
	}
	if err := h.validate.Struct(&env); err != nil {
		httputil.RespondWithKind(w, http.StatusBadRequest, string(KindValidation), validationMessage(err), nil)
		return
	}

	ctx := r.Context()
	h.logger.InfoContext(ctx, "application action", "action", env.Action, "student_id", identity.StudentID)

	switch env.Action {
	case ActionSaveDetails:
		var form DetailsForm
		if err := json.Unmarshal(body, &form); err != nil {
			httputil.RespondWithKind(w, http.StatusBadRequest, string(KindValidation), "invalid details payload", nil)
			return
		}
		res, err := h.service.SaveDetails(ctx, identity, form)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		code := http.StatusOK
		if res.Created {
			code = http.StatusCreated
		}
		httputil.RespondWithJSON(w, code, res)

	case ActionGenerateUploadURLs:
		res, err := h.service.GenerateUploadURLs(ctx, identity)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		httputil.RespondWithJSON(w, http.StatusOK, res)

	case ActionFinalizeSubmission:
		res, err := h.service.FinalizeSubmission(ctx, identity, env.SessionID)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		httputil.RespondWithJSON(w, http.StatusOK, res)

	case ActionGetApplication:
		res, err := h.service.GetApplication(ctx, identity)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		httputil.RespondWithJSON(w, http.StatusOK, res)

	default:
		httputil.RespondWithKind(w, http.StatusBadRequest, string(KindValidation), "unknown action", nil)
	}
}

func StatusCode(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindValidation, KindIncompleteUpload:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var se *Error
	if !errors.As(err, &se) || se.Kind == KindInternal {
		attrs := []any{"error", err}
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) {
			attrs = append(attrs, "sqlstate", pgErr.Field('C'), "pg_message", pgErr.Field('M'))
		}
		h.logger.ErrorContext(ctx, "internal error", attrs...)
		httputil.RespondWithKind(w, http.StatusInternalServerError, string(KindInternal), "internal server error", nil)
		return
	}

	h.logger.InfoContext(ctx, "request rejected", "kind", se.Kind, "reason", se.Message)
	httputil.RespondWithKind(w, StatusCode(se.Kind), string(se.Kind), se.Message, se.Missing)
}
