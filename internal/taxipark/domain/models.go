package domain

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidPark = errors.New("invalid taxi park")

type Driver string

type Passenger string

// Set is an unordered collection of distinct values.
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

func (s Set[T]) Add(v T) { s[v] = struct{}{} }

func (s Set[T]) Contains(v T) bool {
	_, ok := s[v]
	return ok
}

func (s Set[T]) Len() int { return len(s) }

// SubsetOf reports whether every element of s is in other.
func (s Set[T]) SubsetOf(other Set[T]) bool {
	for v := range s {
		if !other.Contains(v) {
			return false
		}
	}
	return true
}

func (s Set[T]) Equal(other Set[T]) bool {
	return len(s) == len(other) && s.SubsetOf(other)
}

// Sorted returns the elements of s in ascending order.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	out := make([]T, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

type Trip struct {
	Driver     Driver
	Passengers Set[Passenger]
	// Duration is in minutes.
	Duration int
	Cost     float64
	Discount *float64
}

// Discounted reports whether the trip carried a positive discount.
func (t Trip) Discounted() bool {
	return t.Discount != nil && *t.Discount > 0
}

type TaxiPark struct {
	AllDrivers    Set[Driver]
	AllPassengers Set[Passenger]
	Trips         []Trip
}

// Clone returns a deep copy so the stored park is isolated from the caller.
func (p TaxiPark) Clone() TaxiPark {
	out := TaxiPark{
		AllDrivers:    make(Set[Driver], len(p.AllDrivers)),
		AllPassengers: make(Set[Passenger], len(p.AllPassengers)),
		Trips:         make([]Trip, 0, len(p.Trips)),
	}
	for d := range p.AllDrivers {
		out.AllDrivers.Add(d)
	}
	for ps := range p.AllPassengers {
		out.AllPassengers.Add(ps)
	}
	for _, trip := range p.Trips {
		cp := trip
		cp.Passengers = make(Set[Passenger], len(trip.Passengers))
		for ps := range trip.Passengers {
			cp.Passengers.Add(ps)
		}
		if trip.Discount != nil {
			d := *trip.Discount
			cp.Discount = &d
		}
		out.Trips = append(out.Trips, cp)
	}
	return out
}

// Validate checks the trip attributes the analytics rely on.
func Validate(p TaxiPark) error {
	for i, trip := range p.Trips {
		switch {
		case len(trip.Passengers) == 0:
			return fmt.Errorf("%w: trip %d has no passengers", ErrInvalidPark, i)
		case trip.Duration < 0:
			return fmt.Errorf("%w: trip %d has negative duration", ErrInvalidPark, i)
		case trip.Cost < 0:
			return fmt.Errorf("%w: trip %d has negative cost", ErrInvalidPark, i)
		case trip.Discount != nil && *trip.Discount < 0:
			return fmt.Errorf("%w: trip %d has negative discount", ErrInvalidPark, i)
		}
	}
	return nil
}

// DurationPeriod is an inclusive range of trip minutes.
type DurationPeriod struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Report bundles the park-wide answers computed in one pass over a registered park.
type Report struct {
	ParkID             uuid.UUID       `json:"park_id"`
	Drivers            int             `json:"drivers"`
	Passengers         int             `json:"passengers"`
	Trips              int             `json:"trips"`
	MinTrips           int             `json:"min_trips"`
	FakeDrivers        []Driver        `json:"fake_drivers"`
	FaithfulPassengers []Passenger     `json:"faithful_passengers"`
	SmartPassengers    []Passenger     `json:"smart_passengers"`
	DurationPeriod     *DurationPeriod `json:"duration_period,omitempty"`
	ParetoHolds        bool            `json:"pareto_holds"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

type ReportEventType string

const (
	EventParkRegistered  ReportEventType = "ParkRegistered"
	EventReportGenerated ReportEventType = "ReportGenerated"
)

type ReportEvent struct {
	ParkID    uuid.UUID       `json:"park_id"`
	Type      ReportEventType `json:"type"`
	Payload   map[string]any  `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type Repository interface {
	CreatePark(ctx context.Context, park TaxiPark) (uuid.UUID, error)
	GetPark(ctx context.Context, id uuid.UUID) (TaxiPark, error)
	ListParks(ctx context.Context) ([]uuid.UUID, error)
}

type ReportCache interface {
	GetReport(ctx context.Context, key string) ([]byte, bool, error)
	PutReport(ctx context.Context, key string, payload []byte) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event ReportEvent) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
