package orders

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/agv/api/validators"
	"github.com/kilianp07/agv/core/model"
	"github.com/kilianp07/agv/core/order"
	"github.com/kilianp07/agv/core/sim"
	"github.com/kilianp07/agv/core/status"
)

// Submitter accepts manual orders and cancellations.
type Submitter interface {
	SubmitOrder(ctx context.Context, req sim.OrderRequest) (model.OrderRecord, error)
	CancelOrder(ctx context.Context, id, reason string) error
}

// CreateRequest is the body of POST /api/orders. Omitted fields are drawn
// like a generated order.
type CreateRequest struct {
	Pickup       string   `json:"pickup" validate:"omitempty,max=64"`
	Dropoff      string   `json:"dropoff" validate:"omitempty,max=64"`
	Priority     string   `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT EMERGENCY low normal high urgent emergency"`
	SlackSeconds *float64 `json:"slack_seconds" validate:"omitempty,gte=0,lte=86400"`
}

// NewListHandler lists live and recent orders via GET /api/orders with
// optional status and priority filters.
func NewListHandler(store status.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := status.Filter{
			State:    strings.ToLower(r.URL.Query().Get("status")),
			Priority: strings.ToUpper(r.URL.Query().Get("priority")),
		}
		validators.WriteJSON(w, http.StatusOK, store.Orders(f))
	})
}

// NewGetHandler exposes one order via GET /api/orders/{orderId}.
func NewGetHandler(store status.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o, ok := store.Order(strings.TrimSpace(chi.URLParam(r, "orderId")))
		if !ok {
			validators.WriteError(w, http.StatusNotFound, errors.New("order not found"))
			return
		}
		validators.WriteJSON(w, http.StatusOK, o)
	})
}

// NewCreateHandler queues a manual order via POST /api/orders.
func NewCreateHandler(sub Submitter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body CreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			validators.WriteError(w, http.StatusBadRequest, err)
			return
		}
		req := sim.OrderRequest{Pickup: body.Pickup, Dropoff: body.Dropoff, Priority: body.Priority}
		if body.SlackSeconds != nil {
			d := time.Duration(*body.SlackSeconds * float64(time.Second))
			req.Slack = &d
		}
		rec, err := sub.SubmitOrder(r.Context(), req)
		if err != nil {
			validators.WriteError(w, http.StatusUnprocessableEntity, err)
			return
		}
		validators.WriteJSON(w, http.StatusCreated, rec)
	})
}

// NewCancelHandler cancels an order via DELETE /api/orders/{orderId}.
func NewCancelHandler(sub Submitter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "orderId"))
		reason := r.URL.Query().Get("reason")
		if reason == "" {
			reason = "cancelled via api"
		}
		if err := sub.CancelOrder(r.Context(), id, reason); err != nil {
			validators.WriteError(w, StatusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// StatusFor maps dispatch errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrUnknownOrder):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}
