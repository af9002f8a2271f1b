// Package control exposes the operator commands of a running simulation.
package control

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/agv/api/validators"
	"github.com/kilianp07/agv/core/agent"
	"github.com/kilianp07/agv/core/charging"
	"github.com/kilianp07/agv/core/dispatch"
	"github.com/kilianp07/agv/core/order"
	"github.com/kilianp07/agv/core/status"
)

// Controller is the command surface of the simulation engine.
type Controller interface {
	Pause()
	Resume()
	Paused() bool
	Speed() float64
	SetSpeed(x float64) error
	Snapshot() status.Snapshot

	SetStrategy(ctx context.Context, s order.Strategy) error
	SetBalancedWeights(ctx context.Context, w order.BalancedWeights) error
	SetGenerationRate(ctx context.Context, perMinute float64) error
	StartGenerator(ctx context.Context) error
	StopGenerator(ctx context.Context) error
	ReassignOrder(ctx context.Context, id string) error
	ForceAssign(ctx context.Context, orderID, vehicleID string) (bool, error)
	RescueVehicle(ctx context.Context, id string, amount float64) error
	AddVehicle(ctx context.Context, id, locationID string) error
	RemoveVehicle(ctx context.Context, id string) error
	SetStationOperational(ctx context.Context, id string, up bool) error
}

type clockState struct {
	Paused bool    `json:"paused"`
	Speed  float64 `json:"speed"`
}

type speedRequest struct {
	Speed float64 `json:"speed" validate:"gt=0,lte=1000"`
}

type strategyRequest struct {
	Strategy string                  `json:"strategy" validate:"required"`
	Weights  *order.BalancedWeights `json:"weights"`
}

type generatorRequest struct {
	Running       *bool    `json:"running"`
	RatePerMinute *float64 `json:"rate_per_minute" validate:"omitempty,gte=0"`
}

type rescueRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
}

type vehicleRequest struct {
	ID       string `json:"id" validate:"required,max=64"`
	Location string `json:"location" validate:"required"`
}

type stationRequest struct {
	Operational bool `json:"operational"`
}

type assignRequest struct {
	VehicleID string `json:"vehicle_id" validate:"required"`
}

type assignResponse struct {
	Assigned bool `json:"assigned"`
}

// Routes mounts the command endpoints on r.
func Routes(r chi.Router, c Controller) {
	r.Get("/api/control", func(w http.ResponseWriter, _ *http.Request) {
		validators.WriteJSON(w, http.StatusOK, clockState{Paused: c.Paused(), Speed: c.Speed()})
	})
	r.Post("/api/control/pause", func(w http.ResponseWriter, _ *http.Request) {
		c.Pause()
		validators.WriteJSON(w, http.StatusOK, clockState{Paused: c.Paused(), Speed: c.Speed()})
	})
	r.Post("/api/control/resume", func(w http.ResponseWriter, _ *http.Request) {
		c.Resume()
		validators.WriteJSON(w, http.StatusOK, clockState{Paused: c.Paused(), Speed: c.Speed()})
	})
	r.Put("/api/control/speed", func(w http.ResponseWriter, r *http.Request) {
		var body speedRequest
		if !decode(w, r, &body) {
			return
		}
		if err := c.SetSpeed(body.Speed); err != nil {
			validators.WriteError(w, http.StatusUnprocessableEntity, err)
			return
		}
		validators.WriteJSON(w, http.StatusOK, clockState{Paused: c.Paused(), Speed: c.Speed()})
	})
	r.Put("/api/control/strategy", func(w http.ResponseWriter, r *http.Request) {
		var body strategyRequest
		if !decode(w, r, &body) {
			return
		}
		s, err := order.ParseStrategy(body.Strategy)
		if err != nil {
			validators.WriteError(w, http.StatusUnprocessableEntity, err)
			return
		}
		if body.Weights != nil {
			if err := c.SetBalancedWeights(r.Context(), *body.Weights); err != nil {
				validators.WriteError(w, statusFor(err), err)
				return
			}
		}
		if err := c.SetStrategy(r.Context(), s); err != nil {
			validators.WriteError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	r.Put("/api/control/generator", func(w http.ResponseWriter, r *http.Request) {
		var body generatorRequest
		if !decode(w, r, &body) {
			return
		}
		if body.RatePerMinute != nil {
			if err := c.SetGenerationRate(r.Context(), *body.RatePerMinute); err != nil {
				validators.WriteError(w, statusFor(err), err)
				return
			}
		}
		if body.Running != nil {
			toggle := c.StopGenerator
			if *body.Running {
				toggle = c.StartGenerator
			}
			if err := toggle(r.Context()); err != nil {
				validators.WriteError(w, statusFor(err), err)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/api/vehicles", func(w http.ResponseWriter, r *http.Request) {
		var body vehicleRequest
		if !decode(w, r, &body) {
			return
		}
		if err := c.AddVehicle(r.Context(), body.ID, body.Location); err != nil {
			validators.WriteError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	r.Delete("/api/vehicles/{vehicleId}", func(w http.ResponseWriter, r *http.Request) {
		if err := c.RemoveVehicle(r.Context(), param(r, "vehicleId")); err != nil {
			validators.WriteError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/api/vehicles/{vehicleId}/rescue", func(w http.ResponseWriter, r *http.Request) {
		var body rescueRequest
		if !decode(w, r, &body) {
			return
		}
		if err := c.RescueVehicle(r.Context(), param(r, "vehicleId"), body.Amount); err != nil {
			validators.WriteError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/api/orders/{orderId}/reassign", func(w http.ResponseWriter, r *http.Request) {
		if err := c.ReassignOrder(r.Context(), param(r, "orderId")); err != nil {
			validators.WriteError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/api/orders/{orderId}/assign", func(w http.ResponseWriter, r *http.Request) {
		var body assignRequest
		if !decode(w, r, &body) {
			return
		}
		ok, err := c.ForceAssign(r.Context(), param(r, "orderId"), body.VehicleID)
		if err != nil {
			validators.WriteError(w, statusFor(err), err)
			return
		}
		validators.WriteJSON(w, http.StatusOK, assignResponse{Assigned: ok})
	})

	r.Get("/api/stations", func(w http.ResponseWriter, _ *http.Request) {
		stations := c.Snapshot().Stations
		if stations == nil {
			stations = []charging.StationStatus{}
		}
		validators.WriteJSON(w, http.StatusOK, stations)
	})
	r.Put("/api/stations/{stationId}", func(w http.ResponseWriter, r *http.Request) {
		var body stationRequest
		if !decode(w, r, &body) {
			return
		}
		if err := c.SetStationOperational(r.Context(), param(r, "stationId"), body.Operational); err != nil {
			validators.WriteError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/api/stats", func(w http.ResponseWriter, _ *http.Request) {
		validators.WriteJSON(w, http.StatusOK, c.Snapshot().Stats)
	})
	r.Get("/api/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		validators.WriteJSON(w, http.StatusOK, c.Snapshot())
	})
}

func decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := validators.DecodeJSONBody(r, dest); err != nil {
		validators.WriteError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func param(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrUnknownOrder),
		errors.Is(err, dispatch.ErrUnknownVehicle),
		errors.Is(err, charging.ErrUnknownStation):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrVehicleBusy),
		errors.Is(err, dispatch.ErrDuplicateVehicle),
		errors.Is(err, dispatch.ErrVehicleNotIdle),
		errors.Is(err, agent.ErrNotBlocked),
		errors.Is(err, agent.ErrNotIdle):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}
