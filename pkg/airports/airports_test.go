package airports

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unklstewy/flightwx/pkg/coordinates"
)

// TestParse tests CSV parsing with both header styles.
func TestParse(t *testing.T) {
	t.Run("Plain header", func(t *testing.T) {
		data := "ident,name,latitude,longitude\n" +
			"EPWA,Warsaw Chopin,52.1657,20.9671\n" +
			"EPKK,Krakow,50.0777,19.7848\n"

		reg, err := Parse(strings.NewReader(data))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if reg.Len() != 2 {
			t.Fatalf("Expected 2 airports, got %d", reg.Len())
		}
		loc, ok := reg.Location("EPWA")
		if !ok {
			t.Fatal("Expected EPWA to be found")
		}
		if loc.Latitude != 52.1657 || loc.Longitude != 20.9671 {
			t.Errorf("Unexpected EPWA location %v", loc)
		}
	})

	t.Run("OurAirports header", func(t *testing.T) {
		data := `"id","ident","type","latitude_deg","longitude_deg"` + "\n" +
			`2434,"EDDF","large_airport",50.033333,8.570556` + "\n"

		reg, err := Parse(strings.NewReader(data))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !reg.IsAirport("EDDF") {
			t.Error("Expected EDDF to be an airport")
		}
	})

	t.Run("Skips bad rows", func(t *testing.T) {
		data := "ident,latitude,longitude\n" +
			"GOOD,10,10\n" +
			"NOLAT,,10\n" +
			"RANGE,95,10\n" +
			",1,1\n" +
			"SHORT\n"

		reg, err := Parse(strings.NewReader(data))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if reg.Len() != 1 {
			t.Errorf("Expected 1 airport, got %d", reg.Len())
		}
	})

	t.Run("Missing columns", func(t *testing.T) {
		_, err := Parse(strings.NewReader("code,latitude,longitude\nX,1,1\n"))
		if !errors.Is(err, ErrMissingColumn) {
			t.Errorf("Expected ErrMissingColumn, got %v", err)
		}
		_, err = Parse(strings.NewReader("ident,lat,lon\nX,1,1\n"))
		if !errors.Is(err, ErrMissingColumn) {
			t.Errorf("Expected ErrMissingColumn, got %v", err)
		}
	})

	t.Run("Empty input", func(t *testing.T) {
		if _, err := Parse(strings.NewReader("")); err == nil {
			t.Error("Expected error for empty input")
		}
	})
}

// TestLoad tests reading from disk.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airports.csv")
	if err := os.WriteFile(path, []byte("ident,latitude,longitude\nKJFK,40.6413,-73.7781\n"), 0644); err != nil {
		t.Fatalf("Failed to write airports: %v", err)
	}

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !reg.IsAirport("KJFK") {
		t.Error("Expected KJFK")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("Expected error for missing file")
	}
}

// TestNew tests map construction and lookups.
func TestNew(t *testing.T) {
	src := map[string]coordinates.Location{"EPWA": coordinates.MustLocation(52.1657, 20.9671)}
	reg := New(src)
	delete(src, "EPWA")

	if !reg.IsAirport("EPWA") {
		t.Error("Expected registry to copy the input map")
	}
	if reg.IsAirport("epwa") {
		t.Error("Expected lookups to be case sensitive")
	}
	if _, ok := reg.Location("XXXX"); ok {
		t.Error("Expected unknown code to be absent")
	}

	var _ Lookup = reg
}
