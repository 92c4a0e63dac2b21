package handlers

import (
	"context"
	"errors"
	"net/http"
	"restock-route-service/internal/api/dto"
	"restock-route-service/internal/ports"
	"restock-route-service/internal/services"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

// RunHandler exposes planning for one run: listing, optimising,
// re-estimating a manual order and saving it.
type RunHandler struct {
	Planner *services.RunPlanner
}

func runID(r *http.Request) string {
	return strings.TrimSpace(httprouter.ParamsFromContext(r.Context()).ByName("id"))
}

func (h *RunHandler) Stops(w http.ResponseWriter, r *http.Request) {
	id := runID(r)

	stops, err := h.Planner.Stops(r.Context(), id)
	if err != nil {
		writePlanError(w, r, err)
		return
	}

	res := dto.ListStopsResponse{
		RunID: id,
		Stops: make([]dto.StopResponse, 0, len(stops)),
	}
	for _, s := range stops {
		res.Stops = append(res.Stops, dto.NewStopResponse(s))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *RunHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req dto.OptimizeRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.Planner.Optimize(r.Context(), runID(r), req.StartAt)
	if err != nil {
		writePlanError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.NewPlanResponse(plan))
}

func (h *RunHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req dto.EstimateRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.Planner.Estimate(r.Context(), runID(r), req.Order, req.StartAt)
	if err != nil {
		writePlanError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.NewPlanResponse(plan))
}

func (h *RunHandler) SaveOrder(w http.ResponseWriter, r *http.Request) {
	var req dto.SaveOrderRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Order == nil {
		writeError(w, r, http.StatusBadRequest, "order is required")
		return
	}

	if err := h.Planner.SaveOrder(r.Context(), runID(r), req.Order); err != nil {
		writePlanError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writePlanError maps planning failures to statuses and user-facing messages.
func writePlanError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ports.ErrRunNotFound):
		writeError(w, r, http.StatusNotFound, "run not found")
	case errors.Is(err, services.ErrDepotNotFound):
		writeError(w, r, http.StatusUnprocessableEntity, services.ErrDepotNotFound.Error())
	case errors.Is(err, services.ErrRouteInfeasible):
		writeError(w, r, http.StatusUnprocessableEntity, services.ErrRouteInfeasible.Error())
	case errors.Is(err, services.ErrUnknownStop), errors.Is(err, ports.ErrInvalidOrder):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrSaveRejected):
		log.Error().Err(err).Msg("save order failed")
		writeError(w, r, http.StatusBadGateway, "the order could not be saved, try again")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, "request cancelled")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("planning failed")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
