package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/example/taxipark/internal/taxipark/domain"
	"github.com/example/taxipark/internal/taxipark/repository"
	"github.com/example/taxipark/internal/taxipark/service"
)

// HTTP exposes taxi park analytics over JSON.
type HTTP struct {
	svc *service.Service
}

// NewHTTP constructs a handler.
func NewHTTP(svc *service.Service) *HTTP {
	return &HTTP{svc: svc}
}

// Router builds the chi router. Extra middlewares (auth) only wrap the /v1 routes.
func (h *HTTP) Router(mws ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Route("/v1/parks", func(r chi.Router) {
		r.Use(mws...)
		r.Post("/", h.createPark)
		r.Get("/", h.listParks)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/fake-drivers", h.fakeDrivers)
			r.Get("/faithful-passengers", h.faithfulPassengers)
			r.Get("/frequent-passengers", h.frequentPassengers)
			r.Get("/smart-passengers", h.smartPassengers)
			r.Get("/duration-period", h.durationPeriod)
			r.Get("/pareto", h.pareto)
			r.Get("/report", h.report)
		})
	})
	return r
}

type tripPayload struct {
	Driver     string   `json:"driver"`
	Passengers []string `json:"passengers"`
	Duration   int      `json:"duration"`
	Cost       float64  `json:"cost"`
	Discount   *float64 `json:"discount,omitempty"`
}

type parkPayload struct {
	Drivers    []string      `json:"drivers"`
	Passengers []string      `json:"passengers"`
	Trips      []tripPayload `json:"trips"`
}

func (p parkPayload) toDomain() domain.TaxiPark {
	park := domain.TaxiPark{
		AllDrivers:    domain.NewSet[domain.Driver](),
		AllPassengers: domain.NewSet[domain.Passenger](),
		Trips:         make([]domain.Trip, 0, len(p.Trips)),
	}
	for _, d := range p.Drivers {
		park.AllDrivers.Add(domain.Driver(d))
	}
	for _, ps := range p.Passengers {
		park.AllPassengers.Add(domain.Passenger(ps))
	}
	for _, t := range p.Trips {
		trip := domain.Trip{
			Driver:     domain.Driver(t.Driver),
			Passengers: domain.NewSet[domain.Passenger](),
			Duration:   t.Duration,
			Cost:       t.Cost,
			Discount:   t.Discount,
		}
		for _, ps := range t.Passengers {
			trip.Passengers.Add(domain.Passenger(ps))
		}
		park.Trips = append(park.Trips, trip)
	}
	return park
}

type periodResponse struct {
	Found bool `json:"found"`
	Start *int `json:"start,omitempty"`
	End   *int `json:"end,omitempty"`
}

func (h *HTTP) createPark(w http.ResponseWriter, r *http.Request) {
	var payload parkPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.svc.RegisterPark(r.Context(), payload.toDomain())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"park_id": id.String()})
}

func (h *HTTP) listParks(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.ListParks(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{"parks": out})
}

func (h *HTTP) fakeDrivers(w http.ResponseWriter, r *http.Request) {
	id, ok := parkID(w, r)
	if !ok {
		return
	}
	drivers, err := h.svc.FakeDrivers(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drivers": domain.Sorted(drivers)})
}

func (h *HTTP) faithfulPassengers(w http.ResponseWriter, r *http.Request) {
	id, ok := parkID(w, r)
	if !ok {
		return
	}
	minTrips, ok := minTripsParam(w, r)
	if !ok {
		return
	}
	passengers, err := h.svc.FaithfulPassengers(r.Context(), id, minTrips)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"passengers": domain.Sorted(passengers)})
}

func (h *HTTP) frequentPassengers(w http.ResponseWriter, r *http.Request) {
	id, ok := parkID(w, r)
	if !ok {
		return
	}
	driver := r.URL.Query().Get("driver")
	if driver == "" {
		writeError(w, http.StatusBadRequest, "driver is required")
		return
	}
	passengers, err := h.svc.FrequentPassengers(r.Context(), id, domain.Driver(driver))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"passengers": domain.Sorted(passengers)})
}

func (h *HTTP) smartPassengers(w http.ResponseWriter, r *http.Request) {
	id, ok := parkID(w, r)
	if !ok {
		return
	}
	passengers, err := h.svc.SmartPassengers(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"passengers": domain.Sorted(passengers)})
}

func (h *HTTP) durationPeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := parkID(w, r)
	if !ok {
		return
	}
	period, found, err := h.svc.MostFrequentTripDurationPeriod(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := periodResponse{Found: found}
	if found {
		resp.Start, resp.End = &period.Start, &period.End
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTP) pareto(w http.ResponseWriter, r *http.Request) {
	id, ok := parkID(w, r)
	if !ok {
		return
	}
	holds, err := h.svc.CheckParetoPrinciple(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"holds": holds})
}

func (h *HTTP) report(w http.ResponseWriter, r *http.Request) {
	id, ok := parkID(w, r)
	if !ok {
		return
	}
	minTrips, ok := minTripsParam(w, r)
	if !ok {
		return
	}
	report, err := h.svc.Report(r.Context(), id, minTrips)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func parkID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func minTripsParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("min_trips")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "min_trips must be a non-negative integer")
		return 0, false
	}
	return n, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPark):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
