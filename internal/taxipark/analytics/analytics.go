// Package analytics answers read-only questions about a taxi park. Every function is pure and
// safe to call concurrently as long as the park is not mutated.
package analytics

import (
	"sort"

	"github.com/example/taxipark/internal/taxipark/domain"
)

const (
	periodWidth       = 10
	paretoDriverShare = 5 // top 1/5 of drivers
	paretoIncomeShare = 0.8
)

// FakeDrivers returns the drivers that performed no trips.
func FakeDrivers(park domain.TaxiPark) domain.Set[domain.Driver] {
	active := make(domain.Set[domain.Driver], len(park.Trips))
	for _, trip := range park.Trips {
		active.Add(trip.Driver)
	}
	fake := domain.NewSet[domain.Driver]()
	for driver := range park.AllDrivers {
		if !active.Contains(driver) {
			fake.Add(driver)
		}
	}
	return fake
}

// FaithfulPassengers returns the passengers that completed at least minTrips trips.
func FaithfulPassengers(park domain.TaxiPark, minTrips int) domain.Set[domain.Passenger] {
	counts := tripsPerPassenger(park.Trips, func(domain.Trip) bool { return true })
	faithful := domain.NewSet[domain.Passenger]()
	for passenger := range park.AllPassengers {
		if counts[passenger] >= minTrips {
			faithful.Add(passenger)
		}
	}
	return faithful
}

// FrequentPassengers returns the passengers taken by driver more than once.
func FrequentPassengers(park domain.TaxiPark, driver domain.Driver) domain.Set[domain.Passenger] {
	counts := tripsPerPassenger(park.Trips, func(t domain.Trip) bool { return t.Driver == driver })
	frequent := domain.NewSet[domain.Passenger]()
	for passenger := range park.AllPassengers {
		if counts[passenger] > 1 {
			frequent.Add(passenger)
		}
	}
	return frequent
}

// SmartPassengers returns the passengers who had a discount on the majority of their trips.
func SmartPassengers(park domain.TaxiPark) domain.Set[domain.Passenger] {
	type tally struct{ discounted, full int }
	tallies := make(map[domain.Passenger]*tally)
	for _, trip := range park.Trips {
		discounted := trip.Discounted()
		for passenger := range trip.Passengers {
			t, ok := tallies[passenger]
			if !ok {
				t = &tally{}
				tallies[passenger] = t
			}
			if discounted {
				t.discounted++
			} else {
				t.full++
			}
		}
	}
	smart := domain.NewSet[domain.Passenger]()
	for passenger, t := range tallies {
		if t.discounted > t.full {
			smart.Add(passenger)
		}
	}
	return smart
}

// MostFrequentTripDurationPeriod returns the 10-minute period (0..9, 10..19, ...) holding the most
// trips. When several periods tie, the one reached first in trip order wins. ok is false when the
// park has no trips.
func MostFrequentTripDurationPeriod(park domain.TaxiPark) (period domain.DurationPeriod, ok bool) {
	counts := make(map[int]int)
	var order []int
	for _, trip := range park.Trips {
		bucket := trip.Duration / periodWidth
		if _, seen := counts[bucket]; !seen {
			order = append(order, bucket)
		}
		counts[bucket]++
	}
	if len(order) == 0 {
		return domain.DurationPeriod{}, false
	}

	best := order[0]
	for _, bucket := range order[1:] {
		if counts[bucket] > counts[best] {
			best = bucket
		}
	}
	start := best * periodWidth
	return domain.DurationPeriod{Start: start, End: start + periodWidth - 1}, true
}

// CheckParetoPrinciple reports whether the top 20% of drivers earn at least 80% of the income.
func CheckParetoPrinciple(park domain.TaxiPark) bool {
	if len(park.Trips) == 0 {
		return false
	}

	income := make(map[domain.Driver]float64)
	var total float64
	for _, trip := range park.Trips {
		income[trip.Driver] += trip.Cost
		total += trip.Cost
	}

	earnings := make([]float64, 0, len(income))
	for _, v := range income {
		earnings = append(earnings, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(earnings)))

	top := len(park.AllDrivers) / paretoDriverShare
	if top > len(earnings) {
		top = len(earnings)
	}
	var topIncome float64
	for _, v := range earnings[:top] {
		topIncome += v
	}
	return topIncome >= total*paretoIncomeShare
}

func tripsPerPassenger(trips []domain.Trip, include func(domain.Trip) bool) map[domain.Passenger]int {
	counts := make(map[domain.Passenger]int)
	for _, trip := range trips {
		if !include(trip) {
			continue
		}
		for passenger := range trip.Passengers {
			counts[passenger]++
		}
	}
	return counts
}
