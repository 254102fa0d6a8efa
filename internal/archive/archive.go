// Package archive post-processes window files: it drops windows covered by
// larger overlapping runs, merges the rest into weekly compressed CSVs and
// uploads them to object storage.
package archive

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"

	"github.com/unklstewy/flightwx/internal/dataset"
	"github.com/unklstewy/flightwx/pkg/logger"
)

// WeekLayout formats week bounds in merged file names.
const WeekLayout = "20060102"

// ErrNoRecords is returned by MergeWeek when no input file could be read.
var ErrNoRecords = errors.New("no readable input files")

// Period is a window file with the bounds parsed from its name.
type Period struct {
	Path  string
	Start time.Time
	End   time.Time
}

// Span returns the window length.
func (p Period) Span() time.Duration {
	return p.End.Sub(p.Start)
}

// overlaps treats windows as half-open, so back-to-back windows do not overlap.
func (p Period) overlaps(o Period) bool {
	return p.Start.Before(o.End) && p.End.After(o.Start)
}

// ParsePeriods keeps the files whose names carry a window.
func ParsePeriods(files []string) []Period {
	periods := make([]Period, 0, len(files))
	for _, f := range files {
		start, end, ok := dataset.ParseOutputName(filepath.Base(f))
		if !ok {
			continue
		}
		periods = append(periods, Period{Path: f, Start: start, End: end})
	}
	return periods
}

// SelectNonOverlapping walks files from the latest window end backwards and
// drops a file when it overlaps an already kept window that is at least as
// long. Files without a window in their name are ignored.
func SelectNonOverlapping(files []string) []string {
	periods := ParsePeriods(files)
	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].End.After(periods[j].End)
	})

	var kept []Period
	selected := make([]string, 0, len(periods))
	for _, p := range periods {
		covered := false
		for _, k := range kept {
			if p.overlaps(k) && p.Span() <= k.Span() {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, p)
			selected = append(selected, p.Path)
		}
	}
	return selected
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}

// Week is a set of window files starting in the same Monday-Sunday week.
type Week struct {
	Start time.Time
	Files []string
}

// End returns the Sunday of the week.
func (w Week) End() time.Time {
	return w.Start.AddDate(0, 0, 6)
}

// FileName returns the merged output name for the week.
func (w Week) FileName() string {
	return fmt.Sprintf("flights_weekly_%s_to_%s.csv.zst", w.Start.Format(WeekLayout), w.End().Format(WeekLayout))
}

// GroupByWeek buckets files by the week of their window start. Weeks are
// returned in chronological order with file names sorted inside each.
func GroupByWeek(files []string) []Week {
	byStart := make(map[time.Time][]string)
	for _, p := range ParsePeriods(files) {
		ws := WeekStart(p.Start)
		byStart[ws] = append(byStart[ws], p.Path)
	}

	weeks := make([]Week, 0, len(byStart))
	for start, fs := range byStart {
		sort.Strings(fs)
		weeks = append(weeks, Week{Start: start, Files: fs})
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Start.Before(weeks[j].Start) })
	return weeks
}

// MergeResult describes a merged week.
type MergeResult struct {
	Path    string
	Files   int
	Skipped int
	Records int
	Bytes   int64
}

// MergeWeek concatenates the week's CSV files under a single header into a
// zstd-compressed file in outDir. Files that cannot be read or whose
// header differs from the first readable file are skipped.
func MergeWeek(week Week, outDir string, log *logger.Logger) (MergeResult, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("archive").With(logger.String("week", week.Start.Format(WeekLayout)))

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return MergeResult{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := MergeResult{Path: filepath.Join(outDir, week.FileName())}
	tmpPath := result.Path + ".tmp"

	out, err := os.Create(tmpPath)
	if err != nil {
		return MergeResult{}, fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}
	defer os.Remove(tmpPath)

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		out.Close()
		return MergeResult{}, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	w := csv.NewWriter(enc)

	var header []string
	for _, path := range week.Files {
		n, hdr, err := appendCSV(w, path, header)
		if err != nil {
			log.Warn("Skipping file", logger.String("file", path), logger.Error(err))
			result.Skipped++
			continue
		}
		if header == nil {
			header = hdr
		}
		result.Files++
		result.Records += n
	}

	w.Flush()
	if err := errors.Join(w.Error(), enc.Close(), out.Close()); err != nil {
		return MergeResult{}, fmt.Errorf("failed to write %s: %w", result.Path, err)
	}
	if header == nil {
		return MergeResult{}, ErrNoRecords
	}
	if err := os.Rename(tmpPath, result.Path); err != nil {
		return MergeResult{}, fmt.Errorf("failed to finalize %s: %w", result.Path, err)
	}

	if info, err := os.Stat(result.Path); err == nil {
		result.Bytes = info.Size()
	}
	log.Info("Merged weekly file",
		logger.String("path", result.Path),
		logger.Int("files", result.Files),
		logger.Int("skipped", result.Skipped),
		logger.String("records", humanize.Comma(int64(result.Records))),
		logger.String("size", humanize.Bytes(uint64(result.Bytes))))
	return result, nil
}

// appendCSV copies the rows of path to w. When header is nil the file's
// header is written first; otherwise it must match.
func appendCSV(w *csv.Writer, path string, header []string) (int, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	hdr, err := r.Read()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read header: %w", err)
	}
	if header != nil && !slices.Equal(hdr, header) {
		return 0, nil, fmt.Errorf("header mismatch")
	}

	// Read fully before writing so a corrupt file leaves no partial rows.
	rows, err := r.ReadAll()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if header == nil {
		if err := w.Write(hdr); err != nil {
			return 0, nil, err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return 0, nil, err
	}
	return len(rows), hdr, nil
}
