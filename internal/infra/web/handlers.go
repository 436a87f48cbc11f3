package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"wisestudent-purchase/internal/domain"
	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/adapter"
	"wisestudent-purchase/internal/infra/logging"
	"wisestudent-purchase/internal/usecase"

	"github.com/go-chi/chi/v5"
)

// A struct to define the expected JSON request body for beginning a purchase.
type beginRequest struct {
	IntentID   string `json:"intentId,omitempty"` // client-supplied for retry dedup, optional
	TargetType string `json:"targetType"`
	TargetRef  string `json:"targetRef"`
	Mode       string `json:"mode,omitempty"`
}

type intentResponse struct {
	IntentID   string `json:"intentId"`
	TargetType string `json:"targetType"`
	TargetRef  string `json:"targetRef"`
	Amount     int64  `json:"amount"`
	Mode       string `json:"mode"`
	State      string `json:"state"`
	CreatedAt  string `json:"createdAt"`
}

type orderResponse struct {
	GatewayOrderID    string `json:"gatewayOrderId"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	GatewayCredential string `json:"gatewayCredential"`
}

type beginResponse struct {
	Intent intentResponse `json:"intent"`
	Order  *orderResponse `json:"order,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
	IntentID  string `json:"intentId,omitempty"`
}

func toIntentResponse(in *model.PurchaseIntent) intentResponse {
	return intentResponse{
		IntentID:   in.ID,
		TargetType: string(in.TargetType),
		TargetRef:  in.TargetRef,
		Amount:     in.Amount,
		Mode:       string(in.Mode),
		State:      string(in.State),
		CreatedAt:  in.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toBeginResponse(res *usecase.BeginResult) beginResponse {
	out := beginResponse{Intent: toIntentResponse(res.Intent)}
	if res.Order != nil {
		out.Order = &orderResponse{
			GatewayOrderID:    res.Order.OrderID,
			Amount:            res.Order.Amount,
			Currency:          res.Order.Currency,
			GatewayCredential: res.Order.GatewayCredential,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req beginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	tt := model.TargetType(req.TargetType)
	mode := model.PurchaseMode(req.Mode)
	if mode == "" {
		mode = model.ModeNew
	}

	res, err := s.purchaseUC.Begin(ctx, req.IntentID, tt, req.TargetRef, mode)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.Is(err, domain.ErrPlanNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown target"})
		case errors.Is(err, domain.ErrIntentConflict):
			// Begin resumes open intents itself; this only surfaces when the
			// racing intent reached a terminal state between our two reads.
			writeJSON(w, http.StatusConflict, errorResponse{Error: "another purchase for this target just completed", Retryable: true})
		case errors.Is(err, domain.ErrGatewayUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "payment gateway unavailable", Retryable: true})
		default:
			s.serverError(r, err, "begin purchase failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, toBeginResponse(res))
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	intentID := chi.URLParam(r, "id")

	var payload adapter.SuccessPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	err := s.verifyUC.Verify(ctx, intentID, payload)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "intent not found", IntentID: intentID})
		case errors.Is(err, domain.ErrActivationDenied):
			writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: "payment could not be confirmed", IntentID: intentID})
		case errors.Is(err, domain.ErrVerificationPending):
			// The gateway was unreachable; the intent stays in VERIFYING and
			// will complete via webhook or reconciler.
			writeJSON(w, http.StatusAccepted, errorResponse{Error: "verification pending", Retryable: true, IntentID: intentID})
		default:
			s.serverError(r, err, "verify failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	intent, err := s.purchaseUC.Get(ctx, intentID)
	if err != nil {
		s.serverError(r, err, "load intent after verify failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, toIntentResponse(intent))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	intentID := chi.URLParam(r, "id")

	if err := s.cancelUC.Cancel(ctx, intentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "intent not found", IntentID: intentID})
			return
		}
		s.serverError(r, err, "cancel failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tt := model.TargetType(r.URL.Query().Get("targetType"))
	ref := r.URL.Query().Get("targetRef")
	if tt == "" || ref == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "targetType and targetRef are required"})
		return
	}

	res, err := s.purchaseUC.Resume(ctx, tt, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "nothing to resume"})
			return
		}
		s.serverError(r, err, "resume failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, toBeginResponse(res))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	intentID := chi.URLParam(r, "id")

	intent, err := s.purchaseUC.Get(ctx, intentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "intent not found", IntentID: intentID})
			return
		}
		s.serverError(r, err, "load intent failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, toIntentResponse(intent))
}

type planResponse struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Amount       int64  `json:"amount"`
	DurationDays int    `json:"durationDays,omitempty"`
}

// handlePlans serves the price list so clients can render the catalog from
// the same source of truth Begin prices against.
func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.ListAll(r.Context())
	if err != nil {
		s.serverError(r, err, "list plans failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{
			Code:         p.Code,
			Name:         p.Name,
			Amount:       p.PricePaise,
			DurationDays: p.DurationDays,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) serverError(r *http.Request, err error, msg string) {
	l := logging.With(r.Context(), s.log)
	l.Error().Err(err).Msg(msg)
}
