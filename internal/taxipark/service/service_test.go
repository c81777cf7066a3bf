package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/taxipark/internal/taxipark/cache"
	"github.com/example/taxipark/internal/taxipark/domain"
	"github.com/example/taxipark/internal/taxipark/repository"
	"github.com/example/taxipark/internal/taxipark/service"
)

type stubPublisher struct {
	events []domain.ReportEvent
	err    error
}

func (s *stubPublisher) Publish(_ context.Context, event domain.ReportEvent) error {
	s.events = append(s.events, event)
	return s.err
}

type stubClock struct{ t time.Time }

func (s *stubClock) Now() time.Time { return s.t }

type failingCache struct{}

func (failingCache) GetReport(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}

func (failingCache) PutReport(context.Context, string, []byte) error {
	return errors.New("cache down")
}

func samplePark() domain.TaxiPark {
	discount := 0.2
	return domain.TaxiPark{
		AllDrivers:    domain.NewSet[domain.Driver]("D-0", "D-1", "D-2", "D-3", "D-4"),
		AllPassengers: domain.NewSet[domain.Passenger]("P-0", "P-1", "P-2"),
		Trips: []domain.Trip{
			{Driver: "D-0", Passengers: domain.NewSet[domain.Passenger]("P-0", "P-1"), Duration: 12, Cost: 500, Discount: &discount},
			{Driver: "D-0", Passengers: domain.NewSet[domain.Passenger]("P-0"), Duration: 15, Cost: 400, Discount: &discount},
			{Driver: "D-1", Passengers: domain.NewSet[domain.Passenger]("P-1"), Duration: 27, Cost: 60},
			{Driver: "D-2", Passengers: domain.NewSet[domain.Passenger]("P-1"), Duration: 5, Cost: 40},
		},
	}
}

func newService(t *testing.T, c domain.ReportCache) (*service.Service, *stubPublisher, *stubClock) {
	t.Helper()
	publisher := &stubPublisher{}
	clock := &stubClock{t: time.Unix(0, 0).UTC()}
	svc := service.New(repository.NewMemoryRepository(), c, publisher, clock, zap.NewNop())
	return svc, publisher, clock
}

func TestRegisterParkPublishesEvent(t *testing.T) {
	svc, publisher, _ := newService(t, cache.NewMemoryCache())

	id, err := svc.RegisterPark(context.Background(), samplePark())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)
	require.Len(t, publisher.events, 1)
	require.Equal(t, domain.EventParkRegistered, publisher.events[0].Type)
	require.Equal(t, id, publisher.events[0].ParkID)
}

func TestRegisterParkRejectsInvalidTrips(t *testing.T) {
	svc, publisher, _ := newService(t, nil)
	park := samplePark()
	park.Trips[2].Passengers = domain.NewSet[domain.Passenger]()

	_, err := svc.RegisterPark(context.Background(), park)
	require.ErrorIs(t, err, domain.ErrInvalidPark)
	require.Empty(t, publisher.events)
}

func TestQueriesAnswerFromRegisteredPark(t *testing.T) {
	svc, _, _ := newService(t, nil)
	ctx := context.Background()
	id, err := svc.RegisterPark(ctx, samplePark())
	require.NoError(t, err)

	fake, err := svc.FakeDrivers(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []domain.Driver{"D-3", "D-4"}, domain.Sorted(fake))

	faithful, err := svc.FaithfulPassengers(ctx, id, 2)
	require.NoError(t, err)
	require.Equal(t, []domain.Passenger{"P-0", "P-1"}, domain.Sorted(faithful))

	frequent, err := svc.FrequentPassengers(ctx, id, "D-0")
	require.NoError(t, err)
	require.Equal(t, []domain.Passenger{"P-0"}, domain.Sorted(frequent))

	smart, err := svc.SmartPassengers(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []domain.Passenger{"P-0"}, domain.Sorted(smart))

	period, ok, err := svc.MostFrequentTripDurationPeriod(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.DurationPeriod{Start: 10, End: 19}, period)

	holds, err := svc.CheckParetoPrinciple(ctx, id)
	require.NoError(t, err)
	require.True(t, holds)
}

func TestQueriesOnEmptyPark(t *testing.T) {
	svc, _, _ := newService(t, nil)
	ctx := context.Background()
	id, err := svc.RegisterPark(ctx, domain.TaxiPark{
		AllDrivers:    domain.NewSet[domain.Driver]("D-0"),
		AllPassengers: domain.NewSet[domain.Passenger]("P-0"),
	})
	require.NoError(t, err)

	_, ok, err := svc.MostFrequentTripDurationPeriod(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)

	holds, err := svc.CheckParetoPrinciple(ctx, id)
	require.NoError(t, err)
	require.False(t, holds)

	report, err := svc.Report(ctx, id, 0)
	require.NoError(t, err)
	require.Nil(t, report.DurationPeriod)
	require.Equal(t, []domain.Driver{"D-0"}, report.FakeDrivers)
}

func TestQueriesOnUnknownPark(t *testing.T) {
	svc, _, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.FakeDrivers(ctx, uuid.New())
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, _, err = svc.MostFrequentTripDurationPeriod(ctx, uuid.New())
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.Report(ctx, uuid.New(), 1)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReportIsCachedPerMinTrips(t *testing.T) {
	svc, publisher, clock := newService(t, cache.NewMemoryCache())
	ctx := context.Background()
	id, err := svc.RegisterPark(ctx, samplePark())
	require.NoError(t, err)

	first, err := svc.Report(ctx, id, 2)
	require.NoError(t, err)
	require.Equal(t, 5, first.Drivers)
	require.Equal(t, 4, first.Trips)
	require.Equal(t, []domain.Passenger{"P-0", "P-1"}, first.FaithfulPassengers)
	require.Equal(t, []domain.Passenger{"P-0"}, first.SmartPassengers)
	require.NotNil(t, first.DurationPeriod)
	require.Equal(t, 10, first.DurationPeriod.Start)
	require.True(t, first.ParetoHolds)

	clock.t = clock.t.Add(time.Hour)
	second, err := svc.Report(ctx, id, 2)
	require.NoError(t, err)
	require.True(t, first.GeneratedAt.Equal(second.GeneratedAt))

	third, err := svc.Report(ctx, id, 4)
	require.NoError(t, err)
	require.True(t, third.GeneratedAt.Equal(clock.t))
	require.Equal(t, []domain.Passenger{}, third.FaithfulPassengers)

	var generated int
	for _, evt := range publisher.events {
		if evt.Type == domain.EventReportGenerated {
			generated++
		}
	}
	require.Equal(t, 2, generated)
}

func TestReportSurvivesCacheAndPublisherFailures(t *testing.T) {
	svc, publisher, _ := newService(t, failingCache{})
	publisher.err = errors.New("nats down")
	ctx := context.Background()

	id, err := svc.RegisterPark(ctx, samplePark())
	require.NoError(t, err)

	report, err := svc.Report(ctx, id, 0)
	require.NoError(t, err)
	require.Equal(t, 3, len(report.FaithfulPassengers))
}
