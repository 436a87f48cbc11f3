package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"wisestudent-purchase/internal/domain"
	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/repository"
	"wisestudent-purchase/internal/infra/gateway"
	"wisestudent-purchase/internal/infra/logging"
	"wisestudent-purchase/internal/infra/redis"
	"wisestudent-purchase/internal/usecase"

	"github.com/rs/zerolog"
)

const webhookLockTTL = 30 * time.Second

// webhookEnvelope is the subset of the gateway's event payload we act on.
// Only payment capture events matter; everything else is acknowledged and
// dropped so the gateway stops redelivering.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// WebhookHandler turns trusted gateway capture events into activation
// confirms. This is the out-of-band channel that completes purchases whose
// client died mid-checkout.
type WebhookHandler struct {
	orders repository.OrderRepository
	guard  usecase.ActivationUseCase
	locker redis.Locker
	secret string
	log    *zerolog.Logger
}

func NewWebhookHandler(
	orders repository.OrderRepository,
	guard usecase.ActivationUseCase,
	locker redis.Locker,
	webhookSecret string,
	logger *zerolog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		orders: orders,
		guard:  guard,
		locker: locker,
		secret: webhookSecret,
		log:    logger,
	}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.With(ctx, h.log)

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	if !gateway.VerifyWebhookSignature(body, r.Header.Get("X-Razorpay-Signature"), h.secret) {
		log.Warn().Msg("webhook signature rejected")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var ev webhookEnvelope
	if err := json.Unmarshal(body, &ev); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if ev.Event != "payment.captured" {
		w.WriteHeader(http.StatusOK)
		return
	}
	orderID := ev.Payload.Payment.Entity.OrderID
	if orderID == "" {
		http.Error(w, "missing order id", http.StatusBadRequest)
		return
	}

	// Single-flight per order across instances; a held lock means a sibling
	// is already confirming this delivery, so acknowledge and move on.
	token, err := h.locker.TryLock(ctx, "webhook:"+orderID, webhookLockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Error().Err(err).Msg("webhook lock failed")
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		if err := h.locker.Unlock(ctx, "webhook:"+orderID, token); err != nil {
			log.Warn().Err(err).Msg("webhook unlock failed")
		}
	}()

	order, err := h.orders.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Not ours (or the begin transaction has not landed yet); 404 makes
			// the gateway redeliver later.
			http.Error(w, "unknown order", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("order_id", orderID).Msg("webhook order lookup failed")
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}

	ctx = logging.WithIntentID(ctx, order.IntentID)
	if err := h.guard.Confirm(ctx, order.IntentID, model.ConfirmedByBroadcast); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// The intent settled as FAILED before this capture arrived.
			// Acknowledge so the gateway stops redelivering; a human resolves
			// the refund from the transition log.
			logging.With(ctx, h.log).Error().Err(err).Msg("capture for a settled intent, manual review needed")
			w.WriteHeader(http.StatusOK)
			return
		}
		logging.With(ctx, h.log).Error().Err(err).Msg("webhook confirm failed")
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}

	if order.Status != model.OrderStatusCaptured {
		order.Status = model.OrderStatusCaptured
		if err := h.orders.UpdateStatus(ctx, nil, order.OrderID, model.OrderStatusCaptured); err != nil {
			logging.With(ctx, h.log).Warn().Err(err).Msg("mark order captured failed")
		}
	}

	w.WriteHeader(http.StatusOK)
}
