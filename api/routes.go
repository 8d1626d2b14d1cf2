package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func composeRoutes(app *application) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthcheck", app.healthCheckHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /register", app.registerUserHandler)
	mux.HandleFunc("POST /login", app.loginHandler)

	mux.HandleFunc("POST /tasks", app.requireAuthenticatedUser(app.createTaskHandler))
	mux.HandleFunc("GET /tasks", app.requireAuthenticatedUser(app.listTasksHandler))
	mux.HandleFunc("DELETE /tasks/{id}", app.requireAuthenticatedUser(app.deleteTaskHandler))
	mux.HandleFunc("PUT /tasks/{id}", app.requireAuthenticatedUser(app.updateTaskStatusHandler))
	mux.HandleFunc("PUT /tasks/{id}/status", app.requireAuthenticatedUser(app.updateTaskStatusHandler))
	mux.HandleFunc("PATCH /tasks/{id}/priority", app.requireAuthenticatedUser(app.updateTaskPriorityHandler))

	var h http.Handler = mux
	if app.limiter != nil {
		h = app.rateLimit(h)
	}
	return app.metrics(app.recoverPanic(app.enableCORS(h)))
}
