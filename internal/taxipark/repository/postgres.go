package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/taxipark/internal/taxipark/domain"
)

// OpenPostgres opens and pings a pgx-backed database handle.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

// PostgresSource reads a taxi park snapshot from the drivers, passengers, trips and
// trip_passengers tables. It never writes.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource constructs the source.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

type tripRow struct {
	ID       int64
	Driver   string
	Duration int
	Cost     float64
	Discount sql.NullFloat64
}

type passengerLink struct {
	TripID    int64
	Passenger string
}

// LoadPark reads the whole dataset inside one read-only transaction.
func (s *PostgresSource) LoadPark(ctx context.Context) (domain.TaxiPark, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return domain.TaxiPark{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	driverNames, err := queryNames(ctx, tx, `SELECT name FROM drivers ORDER BY name`)
	if err != nil {
		return domain.TaxiPark{}, fmt.Errorf("select drivers: %w", err)
	}
	passengerNames, err := queryNames(ctx, tx, `SELECT name FROM passengers ORDER BY name`)
	if err != nil {
		return domain.TaxiPark{}, fmt.Errorf("select passengers: %w", err)
	}
	trips, err := queryTrips(ctx, tx)
	if err != nil {
		return domain.TaxiPark{}, fmt.Errorf("select trips: %w", err)
	}
	links, err := queryLinks(ctx, tx)
	if err != nil {
		return domain.TaxiPark{}, fmt.Errorf("select trip passengers: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.TaxiPark{}, fmt.Errorf("commit: %w", err)
	}
	return assemble(driverNames, passengerNames, trips, links), nil
}

func queryNames(ctx context.Context, tx *sql.Tx, query string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func queryTrips(ctx context.Context, tx *sql.Tx) ([]tripRow, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, driver, duration_min, cost, discount FROM trips ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var trips []tripRow
	for rows.Next() {
		var row tripRow
		if err := rows.Scan(&row.ID, &row.Driver, &row.Duration, &row.Cost, &row.Discount); err != nil {
			return nil, err
		}
		trips = append(trips, row)
	}
	return trips, rows.Err()
}

func queryLinks(ctx context.Context, tx *sql.Tx) ([]passengerLink, error) {
	rows, err := tx.QueryContext(ctx, `SELECT trip_id, passenger FROM trip_passengers ORDER BY trip_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []passengerLink
	for rows.Next() {
		var link passengerLink
		if err := rows.Scan(&link.TripID, &link.Passenger); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// assemble keeps trip order as given. Links pointing at unknown trips are ignored.
func assemble(driverNames, passengerNames []string, trips []tripRow, links []passengerLink) domain.TaxiPark {
	park := domain.TaxiPark{
		AllDrivers:    make(domain.Set[domain.Driver], len(driverNames)),
		AllPassengers: make(domain.Set[domain.Passenger], len(passengerNames)),
		Trips:         make([]domain.Trip, 0, len(trips)),
	}
	for _, name := range driverNames {
		park.AllDrivers.Add(domain.Driver(name))
	}
	for _, name := range passengerNames {
		park.AllPassengers.Add(domain.Passenger(name))
	}

	index := make(map[int64]int, len(trips))
	for _, row := range trips {
		trip := domain.Trip{
			Driver:     domain.Driver(row.Driver),
			Passengers: domain.NewSet[domain.Passenger](),
			Duration:   row.Duration,
			Cost:       row.Cost,
		}
		if row.Discount.Valid {
			discount := row.Discount.Float64
			trip.Discount = &discount
		}
		index[row.ID] = len(park.Trips)
		park.Trips = append(park.Trips, trip)
	}
	for _, link := range links {
		if i, ok := index[link.TripID]; ok {
			park.Trips[i].Passengers.Add(domain.Passenger(link.Passenger))
		}
	}
	return park
}
