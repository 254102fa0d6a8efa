package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/unklstewy/flightwx/internal/dataset"
)

// DatapointRepository stores combined datapoints.
type DatapointRepository struct {
	db         *DB
	insertStmt string
}

// NewDatapointRepository creates a new datapoint repository.
func NewDatapointRepository(db *DB) *DatapointRepository {
	columns := append([]string{"run_id", "target"}, dataset.Header()...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	query := fmt.Sprintf(
		`INSERT INTO combined_datapoints (%s) VALUES (%s)`,
		strings.Join(columns, ", "),
		placeholders,
	)

	return &DatapointRepository{
		db:         db,
		insertStmt: db.Rebind(query),
	}
}

// InsertBatch stores records in a single transaction tagged with runID
// and target. Either every record is stored or none is.
func (r *DatapointRepository) InsertBatch(ctx context.Context, runID, target string, records []dataset.CombinedDatapoint) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.insertStmt)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		args := append([]interface{}{runID, target}, recordArgs(rec)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert datapoint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// recordArgs returns the column values of rec in dataset.Header order.
// Undefined values are stored as NULL.
func recordArgs(rec dataset.CombinedDatapoint) []interface{} {
	f, w := rec.Flight, rec.Weather
	return []interface{}{
		rec.Timestamp,
		f.Location.Latitude,
		f.Location.Longitude,
		f.ArrivalAirport,
		f.ArrivalAirportLocation.Latitude,
		f.ArrivalAirportLocation.Longitude,
		f.Timestamp,
		nullable(f.HorizontalSpeed),
		f.Altitude,
		nullable(f.VerticalSpeed),
		f.Heading,
		f.DistanceToDestination,
		nullable(f.ArrivalTime),
		nullable(f.TimeToArrival),
		w.Timestamp,
		w.TemperatureCelsius,
		w.FeelsLikeCelsius,
		w.ConditionText,
		w.WindSpeedKph,
		w.HumidityPercent,
		w.PrecipitationMm,
		w.VisibilityKm,
		w.PressureMb,
		w.UVIndex,
	}
}

func nullable[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
