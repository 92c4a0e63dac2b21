package api

import (
	"net/http"
	"restock-route-service/internal/api/handlers"
	"restock-route-service/internal/services"

	"github.com/julienschmidt/httprouter"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(planner *services.RunPlanner) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(handlers.NotFound)
	router.MethodNotAllowed = http.HandlerFunc(handlers.MethodNotAllowed)

	runHandler := &handlers.RunHandler{Planner: planner}

	router.HandlerFunc(http.MethodGet, "/health", handlers.Health)
	router.HandlerFunc(http.MethodGet, "/runs/:id/stops", runHandler.Stops)
	router.HandlerFunc(http.MethodPost, "/runs/:id/optimize", runHandler.Optimize)
	router.HandlerFunc(http.MethodPost, "/runs/:id/estimate", runHandler.Estimate)
	router.HandlerFunc(http.MethodPut, "/runs/:id/order", runHandler.SaveOrder)

	return loggingMiddleware(router)
}
