package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
)

// TestSelectNonOverlapping tests overlap resolution.
func TestSelectNonOverlapping(t *testing.T) {
	files := []string{
		"data/flights_20240301_0000_to_20240301_0200.csv",
		"data/flights_20240301_0200_to_20240301_0400.csv",
		// Longer run covering both windows above
		"data/flights_20240301_0000_to_20240301_0600.csv",
		"data/flights_20240302_0000_to_20240302_0200.csv",
		"data/notes.txt",
	}

	got := SelectNonOverlapping(files)
	want := []string{
		"data/flights_20240302_0000_to_20240302_0200.csv",
		"data/flights_20240301_0000_to_20240301_0600.csv",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SelectNonOverlapping() = %v, expected %v", got, want)
	}
}

// TestSelectKeepsLongerLaterWindow verifies a longer window is kept even
// when a shorter overlapping one ends later.
func TestSelectKeepsLongerLaterWindow(t *testing.T) {
	files := []string{
		"flights_20240301_0300_to_20240301_0500.csv",
		"flights_20240301_0000_to_20240301_0400.csv",
	}
	got := SelectNonOverlapping(files)
	if len(got) != 2 {
		t.Errorf("Expected both files kept, got %v", got)
	}
}

// TestSelectKeepsAdjacentWindows verifies consecutive windows from one run survive.
func TestSelectKeepsAdjacentWindows(t *testing.T) {
	files := []string{
		"flights_20240301_0000_to_20240301_0200.csv",
		"flights_20240301_0200_to_20240301_0400.csv",
		"flights_20240301_0400_to_20240301_0600.csv",
	}
	if got := SelectNonOverlapping(files); len(got) != 3 {
		t.Errorf("Expected all adjacent windows kept, got %v", got)
	}
}

// TestWeekStart tests Monday alignment.
func TestWeekStart(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   time.Time
	}{
		{"Monday midnight", monday},
		{"Wednesday afternoon", time.Date(2024, 3, 6, 15, 30, 0, 0, time.UTC)},
		{"Sunday late", time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekStart(tt.in); !got.Equal(monday) {
				t.Errorf("WeekStart(%v) = %v, expected %v", tt.in, got, monday)
			}
		})
	}
}

// TestGroupByWeek tests weekly bucketing and naming.
func TestGroupByWeek(t *testing.T) {
	files := []string{
		"flights_20240311_0000_to_20240311_0200.csv",
		"flights_20240306_0200_to_20240306_0400.csv",
		"flights_20240304_0000_to_20240304_0200.csv",
		"bogus.csv",
	}
	weeks := GroupByWeek(files)
	if len(weeks) != 2 {
		t.Fatalf("Expected 2 weeks, got %d", len(weeks))
	}
	if !reflect.DeepEqual(weeks[0].Files, []string{
		"flights_20240304_0000_to_20240304_0200.csv",
		"flights_20240306_0200_to_20240306_0400.csv",
	}) {
		t.Errorf("Unexpected first week files %v", weeks[0].Files)
	}
	if name := weeks[0].FileName(); name != "flights_weekly_20240304_to_20240310.csv.zst" {
		t.Errorf("Unexpected weekly name %s", name)
	}
	if name := weeks[1].FileName(); name != "flights_weekly_20240311_to_20240317.csv.zst" {
		t.Errorf("Unexpected weekly name %s", name)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func readMerged(t *testing.T, path string) []byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open merged file: %v", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("Failed to create zstd reader: %v", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}
	return data
}

// TestMergeWeek tests merging with header checks.
func TestMergeWeek(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "weekly")

	a := filepath.Join(in, "flights_20240304_0000_to_20240304_0200.csv")
	b := filepath.Join(in, "flights_20240305_0000_to_20240305_0200.csv")
	c := filepath.Join(in, "flights_20240306_0000_to_20240306_0200.csv")
	writeFile(t, a, "timestamp,flight_icao24\n1,abc\n2,abc\n")
	writeFile(t, b, "timestamp,flight_icao24\n3,def\n")
	writeFile(t, c, "timestamp,other\n4,ghi\n")

	week := Week{Start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), Files: []string{a, b, c, filepath.Join(in, "missing.csv")}}
	res, err := MergeWeek(week, out, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if res.Files != 2 || res.Skipped != 2 || res.Records != 3 {
		t.Errorf("Unexpected result %+v", res)
	}
	if res.Bytes == 0 {
		t.Error("Expected a non-empty archive")
	}
	if filepath.Base(res.Path) != "flights_weekly_20240304_to_20240310.csv.zst" {
		t.Errorf("Unexpected path %s", res.Path)
	}

	data := readMerged(t, res.Path)
	want := "timestamp,flight_icao24\n1,abc\n2,abc\n3,def\n"
	if string(data) != want {
		t.Errorf("Merged content = %q, expected %q", data, want)
	}
}

// TestMergeWeekNoReadableFiles tests the empty case.
func TestMergeWeekNoReadableFiles(t *testing.T) {
	out := t.TempDir()
	week := Week{Start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), Files: []string{filepath.Join(out, "missing.csv")}}

	if _, err := MergeWeek(week, out, nil); !errors.Is(err, ErrNoRecords) {
		t.Errorf("Expected ErrNoRecords, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, week.FileName())); !os.IsNotExist(err) {
		t.Error("Expected no output file")
	}
}

type fakeS3 struct {
	keys   []string
	bodies []string
	err    error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(params.Body)
	f.keys = append(f.keys, *params.Bucket+"/"+*params.Key)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

// TestUploadDir tests uploading merged files through the S3 uploader.
func TestUploadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "flights_weekly_20240311_to_20240317.csv.zst"), "two")
	writeFile(t, filepath.Join(dir, "flights_weekly_20240304_to_20240310.csv.zst"), "one")
	writeFile(t, filepath.Join(dir, "readme.txt"), "skip")

	client := &fakeS3{}
	up := NewS3UploaderWithClient(client, "bucket")

	keys, err := UploadDir(context.Background(), up, dir, "flights", nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	wantKeys := []string{
		"flights/flights_weekly_20240304_to_20240310.csv.zst",
		"flights/flights_weekly_20240311_to_20240317.csv.zst",
	}
	if !reflect.DeepEqual(keys, wantKeys) {
		t.Errorf("UploadDir() keys = %v, expected %v", keys, wantKeys)
	}
	if client.keys[0] != "bucket/"+wantKeys[0] || client.bodies[0] != "one" {
		t.Errorf("Unexpected first upload %s %q", client.keys[0], client.bodies[0])
	}
}

// TestUploadDirStopsOnError tests error propagation.
func TestUploadDirStopsOnError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "flights_weekly_20240304_to_20240310.csv.zst"), "one")

	up := NewS3UploaderWithClient(&fakeS3{err: errors.New("access denied")}, "bucket")
	_, err := UploadDir(context.Background(), up, dir, "", nil)
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("Expected upload error, got %v", err)
	}
}
