package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stitchfolk/pattern-delivery/internal/dedupe"
	"github.com/stitchfolk/pattern-delivery/internal/delivery"
	"github.com/stitchfolk/pattern-delivery/internal/pkg/logger"
	"github.com/stitchfolk/pattern-delivery/internal/repository/postgres"
)

// deliveryTimeout bounds one background delivery attempt end to end.
const deliveryTimeout = 5 * time.Minute

// OrderSource loads delivery data for a completed order.
type OrderSource interface {
	GetOrderDelivery(ctx context.Context, orderID string) (*postgres.OrderDelivery, error)
}

// Deliverer runs the delivery pipeline for one order.
type Deliverer interface {
	Deliver(ctx context.Context, req delivery.Request) *delivery.Summary
}

// Claim is a held delivery claim that can be handed back.
type Claim interface {
	Release(ctx context.Context) error
}

// Claimer deduplicates webhook retries. A nil Claim with nil error means the
// order is already claimed.
type Claimer interface {
	Claim(ctx context.Context, orderID string) (Claim, error)
}

// NewDedupeClaimer adapts the Redis claim store to the Claimer interface.
func NewDedupeClaimer(store *dedupe.Store) Claimer {
	return dedupeClaimer{store}
}

type dedupeClaimer struct{ store *dedupe.Store }

func (c dedupeClaimer) Claim(ctx context.Context, orderID string) (Claim, error) {
	claim, err := c.store.Claim(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, nil
	}
	return claim, nil
}

// Handlers carries the API's dependencies.
type Handlers struct {
	orders    OrderSource
	deliverer Deliverer
	claims    Claimer // nil disables deduplication
	log       *logger.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(orders OrderSource, deliverer Deliverer, claims Claimer) *Handlers {
	return &Handlers{
		orders:    orders,
		deliverer: deliverer,
		claims:    claims,
		log:       logger.With("api"),
	}
}

// DeliverOrder handles the order-completion webhook. It responds 202 and
// runs the pipeline in a detached goroutine: no delivery failure may ever
// surface on the storefront's order confirmation path.
func (h *Handlers) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "missing order id"})
		return
	}

	var claim Claim
	if h.claims != nil {
		var err error
		claim, err = h.claims.Claim(r.Context(), orderID)
		if err != nil {
			// A dedupe outage must not block deliveries; worst case a retried
			// webhook double-sends, which the buyer can live with.
			h.log.Warn("dedupe unavailable, delivering without claim",
				"order_id", orderID, "error", err.Error())
		} else if claim == nil {
			respondJSON(w, http.StatusConflict, map[string]string{
				"status":   "duplicate",
				"order_id": orderID,
			})
			return
		}
	}

	ord, err := h.orders.GetOrderDelivery(r.Context(), orderID)
	if err != nil {
		h.releaseClaim(claim, orderID)
		if errors.Is(err, postgres.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		h.log.Error("order lookup failed", "order_id", orderID, "error", err.Error())
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "order lookup failed"})
		return
	}

	req := delivery.Request{
		OrderID:        ord.OrderID,
		OrderNumber:    ord.OrderNumber,
		BuyerName:      ord.BuyerName,
		RecipientEmail: ord.BuyerEmail,
		ProductTitle:   ord.ProductTitle,
		Files:          make([]delivery.SourceFile, 0, len(ord.Files)),
	}
	for _, f := range ord.Files {
		req.Files = append(req.Files, delivery.SourceFile{
			URL:         f.URL,
			ContentType: f.ContentType,
			DisplayName: f.DisplayName,
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		h.deliverer.Deliver(ctx, req)
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":   "accepted",
		"order_id": orderID,
		"files":    len(req.Files),
	})
}

func (h *Handlers) releaseClaim(claim Claim, orderID string) {
	if claim == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := claim.Release(ctx); err != nil {
		h.log.Warn("releasing delivery claim failed", "order_id", orderID, "error", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
