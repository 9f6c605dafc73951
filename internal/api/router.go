package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"rentalstation/internal/auth"
	"rentalstation/internal/entities"
	"rentalstation/internal/metrics"
)

type Handlers struct {
	Rentals  *RentalPaymentHandler
	Stations *StationHandler
	Auth     *AuthHandler
	Admin    *AdminHandler
}

type RouterOptions struct {
	AllowedOrigins []string
	// ExposeMetrics mounts /metrics; only meaningful for the long running server.
	ExposeMetrics bool
}

// NewRouter builds the HTTP surface shared by the server and the Lambda adapter.
//
// Authentication is attached per route rather than with Use so that a wrong method on a known
// path is answered with 405 before any token check.
func NewRouter(h Handlers, parser auth.TokenParser, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	r.Use(metrics.Middleware)

	user := auth.Middleware(parser)
	admin := func(next http.HandlerFunc) http.Handler { return user(auth.AdminOnly(next)) }

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	if opts.ExposeMetrics {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	r.Handle("/payments/approve-rental", user(http.HandlerFunc(h.Rentals.ApproveRental))).Methods(http.MethodPost)

	r.Handle("/stations/nearby", user(http.HandlerFunc(h.Stations.Nearby))).Methods(http.MethodGet)
	r.Handle("/stations/search", user(http.HandlerFunc(h.Stations.Search))).Methods(http.MethodGet)
	r.Handle("/stations/recent", user(http.HandlerFunc(h.Stations.Recent))).Methods(http.MethodGet)
	r.Handle("/stations/{stationId}", user(http.HandlerFunc(h.Stations.Detail))).Methods(http.MethodGet)
	r.Handle("/stations/{stationId}/items", user(http.HandlerFunc(h.Stations.Items))).Methods(http.MethodGet)
	r.Handle("/stations/{stationId}/bookmarks", user(http.HandlerFunc(h.Stations.Bookmark))).Methods(http.MethodPost)

	r.HandleFunc("/auth/register", h.Auth.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Auth.Login).Methods(http.MethodPost)

	r.Handle("/admin/stations", admin(h.Admin.CreateStation)).Methods(http.MethodPost)
	r.Handle("/admin/items", admin(h.Admin.CreateItem)).Methods(http.MethodPost)

	var handler http.Handler = r
	if len(opts.AllowedOrigins) > 0 {
		handler = handlers.CORS(
			handlers.AllowedOrigins(opts.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(handler)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(logrus.StandardLogger()),
		handlers.PrintRecoveryStack(true),
	)(handler)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, entities.Response{Success: true, Message: "ok"})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, entities.Response{Success: false, Message: "Route not found"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, entities.Response{Success: false, Message: "Method " + r.Method + " not allowed"})
}
