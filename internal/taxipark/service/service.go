package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/taxipark/internal/taxipark/analytics"
	"github.com/example/taxipark/internal/taxipark/domain"
)

// Service answers analytics queries against registered taxi parks.
type Service struct {
	repo   domain.Repository
	cache  domain.ReportCache
	events domain.EventPublisher
	clock  domain.Clock
	logger *zap.Logger
	tracer trace.Tracer
}

// New constructs a Service. cache and events may be nil.
func New(repo domain.Repository, cache domain.ReportCache, events domain.EventPublisher, clock domain.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		events: events,
		clock:  clock,
		logger: logger,
		tracer: otel.Tracer("taxipark.service"),
	}
}

// RegisterPark validates and stores a park, returning its identifier.
func (s *Service) RegisterPark(ctx context.Context, park domain.TaxiPark) (uuid.UUID, error) {
	if err := domain.Validate(park); err != nil {
		return uuid.Nil, err
	}
	id, err := s.repo.CreatePark(ctx, park)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create park: %w", err)
	}
	s.logger.Info("taxi park registered",
		zap.Stringer("park_id", id),
		zap.Int("drivers", park.AllDrivers.Len()),
		zap.Int("passengers", park.AllPassengers.Len()),
		zap.Int("trips", len(park.Trips)),
	)
	s.publish(ctx, domain.ReportEvent{
		ParkID:    id,
		Type:      domain.EventParkRegistered,
		Payload:   map[string]any{"trips": len(park.Trips)},
		CreatedAt: s.clock.Now(),
	})
	return id, nil
}

// ListParks returns the ids of registered parks in registration order.
func (s *Service) ListParks(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.repo.ListParks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list parks: %w", err)
	}
	return ids, nil
}

// FakeDrivers returns the drivers of the park that performed no trips.
func (s *Service) FakeDrivers(ctx context.Context, id uuid.UUID) (domain.Set[domain.Driver], error) {
	return query(ctx, s, "fake_drivers", id, analytics.FakeDrivers)
}

// FaithfulPassengers returns the passengers with at least minTrips trips.
func (s *Service) FaithfulPassengers(ctx context.Context, id uuid.UUID, minTrips int) (domain.Set[domain.Passenger], error) {
	return query(ctx, s, "faithful_passengers", id, func(p domain.TaxiPark) domain.Set[domain.Passenger] {
		return analytics.FaithfulPassengers(p, minTrips)
	})
}

// FrequentPassengers returns the passengers taken by driver more than once.
func (s *Service) FrequentPassengers(ctx context.Context, id uuid.UUID, driver domain.Driver) (domain.Set[domain.Passenger], error) {
	return query(ctx, s, "frequent_passengers", id, func(p domain.TaxiPark) domain.Set[domain.Passenger] {
		return analytics.FrequentPassengers(p, driver)
	})
}

// SmartPassengers returns the passengers discounted on most of their trips.
func (s *Service) SmartPassengers(ctx context.Context, id uuid.UUID) (domain.Set[domain.Passenger], error) {
	return query(ctx, s, "smart_passengers", id, analytics.SmartPassengers)
}

// MostFrequentTripDurationPeriod returns the busiest 10-minute duration period; ok is false
// for a park without trips.
func (s *Service) MostFrequentTripDurationPeriod(ctx context.Context, id uuid.UUID) (period domain.DurationPeriod, ok bool, err error) {
	res, err := query(ctx, s, "duration_period", id, durationPeriod)
	if err != nil {
		return domain.DurationPeriod{}, false, err
	}
	if res == nil {
		return domain.DurationPeriod{}, false, nil
	}
	return *res, true, nil
}

// CheckParetoPrinciple reports whether 20% of the drivers earn 80% of the income.
func (s *Service) CheckParetoPrinciple(ctx context.Context, id uuid.UUID) (bool, error) {
	return query(ctx, s, "pareto", id, analytics.CheckParetoPrinciple)
}

// Report computes every park-wide answer at once. Results are cached per park and minTrips.
func (s *Service) Report(ctx context.Context, id uuid.UUID, minTrips int) (domain.Report, error) {
	key := reportKey(id, minTrips)
	if s.cache != nil {
		if cached, ok, err := s.cache.GetReport(ctx, key); err != nil {
			s.logger.Warn("report cache lookup failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			var report domain.Report
			if err := json.Unmarshal(cached, &report); err == nil {
				return report, nil
			}
			s.logger.Warn("discarding undecodable cached report", zap.String("key", key))
		}
	}

	report, err := query(ctx, s, "report", id, func(p domain.TaxiPark) domain.Report {
		return domain.Report{
			ParkID:             id,
			Drivers:            p.AllDrivers.Len(),
			Passengers:         p.AllPassengers.Len(),
			Trips:              len(p.Trips),
			MinTrips:           minTrips,
			FakeDrivers:        domain.Sorted(analytics.FakeDrivers(p)),
			FaithfulPassengers: domain.Sorted(analytics.FaithfulPassengers(p, minTrips)),
			SmartPassengers:    domain.Sorted(analytics.SmartPassengers(p)),
			DurationPeriod:     durationPeriod(p),
			ParetoHolds:        analytics.CheckParetoPrinciple(p),
			GeneratedAt:        s.clock.Now(),
		}
	})
	if err != nil {
		return domain.Report{}, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(report)
		if err == nil {
			err = s.cache.PutReport(ctx, key, payload)
		}
		if err != nil {
			s.logger.Warn("report cache store failed", zap.String("key", key), zap.Error(err))
		}
	}
	s.publish(ctx, domain.ReportEvent{
		ParkID:    id,
		Type:      domain.EventReportGenerated,
		Payload:   map[string]any{"min_trips": minTrips, "pareto_holds": report.ParetoHolds},
		CreatedAt: report.GeneratedAt,
	})
	return report, nil
}

func query[T any](ctx context.Context, s *Service, name string, id uuid.UUID, fn func(domain.TaxiPark) T) (T, error) {
	ctx, span := s.tracer.Start(ctx, "taxipark."+name, trace.WithAttributes(attribute.String("park.id", id.String())))
	defer span.End()
	start := time.Now()

	var zero T
	park, err := s.repo.GetPark(ctx, id)
	if err != nil {
		queriesTotal.WithLabelValues(name, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, fmt.Errorf("%s: %w", name, err)
	}

	out := fn(park)
	elapsed := time.Since(start)
	queryDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	queriesTotal.WithLabelValues(name, "ok").Inc()
	s.logger.Debug("query answered", zap.String("query", name), zap.Stringer("park_id", id), zap.Duration("elapsed", elapsed))
	return out, nil
}

func (s *Service) publish(ctx context.Context, event domain.ReportEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func durationPeriod(p domain.TaxiPark) *domain.DurationPeriod {
	period, ok := analytics.MostFrequentTripDurationPeriod(p)
	if !ok {
		return nil
	}
	return &period
}

func reportKey(id uuid.UUID, minTrips int) string {
	return fmt.Sprintf("%s:%d", id, minTrips)
}
