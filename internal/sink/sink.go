// Package sink writes merged datapoints to their destinations.
package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/unklstewy/flightwx/internal/dataset"
	"github.com/unklstewy/flightwx/internal/db"
)

// Sink receives batches of records for a named target. For file sinks the
// target is the output file name.
type Sink interface {
	Write(ctx context.Context, target string, records []dataset.CombinedDatapoint) error
	Close() error
}

// CSVSink appends records to CSV files under a directory.
type CSVSink struct {
	dir string
}

// NewCSVSink creates a CSV sink rooted at dir.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &CSVSink{dir: dir}, nil
}

// Path returns the file path for target.
func (s *CSVSink) Path(target string) string {
	return filepath.Join(s.dir, target)
}

// Write appends records to the target file, writing the header first when
// the file does not exist or is empty.
func (s *CSVSink) Write(ctx context.Context, target string, records []dataset.CombinedDatapoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.Path(target)
	needHeader := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		needHeader = false
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(dataset.Header()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for _, rec := range records {
		if err := w.Write(rec.Row()); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

// Close implements Sink.
func (s *CSVSink) Close() error {
	return nil
}

// DBSink stores records in the combined_datapoints table.
type DBSink struct {
	db    *db.DB
	repo  *db.DatapointRepository
	runID string
}

// NewDBSink creates a database sink tagging rows with runID.
func NewDBSink(database *db.DB, runID string) *DBSink {
	return &DBSink{
		db:    database,
		repo:  db.NewDatapointRepository(database),
		runID: runID,
	}
}

// Write stores records in one transaction, retrying lost connections.
func (s *DBSink) Write(ctx context.Context, target string, records []dataset.CombinedDatapoint) error {
	return db.WithRetry(ctx, func() error {
		return s.repo.InsertBatch(ctx, s.runID, target, records)
	}, 2, nil)
}

// Close closes the underlying database.
func (s *DBSink) Close() error {
	return s.db.Close()
}

// multiSink fans out to several sinks in order.
type multiSink struct {
	sinks []Sink
}

// Multi returns a Sink writing to every sink in order. Every sink is
// attempted; errors are combined.
func Multi(sinks ...Sink) Sink {
	return &multiSink{sinks: sinks}
}

func (m *multiSink) Write(ctx context.Context, target string, records []dataset.CombinedDatapoint) error {
	var err error
	for _, s := range m.sinks {
		err = multierr.Append(err, s.Write(ctx, target, records))
	}
	return err
}

func (m *multiSink) Close() error {
	var err error
	for _, s := range m.sinks {
		err = multierr.Append(err, s.Close())
	}
	return err
}
