package dataset

import (
	"regexp"
	"strings"
	"time"
)

const (
	// TimeLayout formats window bounds in output names
	TimeLayout = "20060102_1504"

	// DefaultTemplate is the default output file name
	DefaultTemplate = "flights_{start}_to_{end}.csv"
)

var outputNamePattern = regexp.MustCompile(`(\d{8}_\d{4})_to_(\d{8}_\d{4})`)

// OutputName fills {start} and {end} in template with the UTC window bounds.
func OutputName(template string, start, end time.Time) string {
	return strings.NewReplacer(
		"{start}", start.UTC().Format(TimeLayout),
		"{end}", end.UTC().Format(TimeLayout),
	).Replace(template)
}

// ParseOutputName recovers the window bounds from a name produced with a
// "{start}_to_{end}" template.
func ParseOutputName(name string) (start, end time.Time, ok bool) {
	m := outputNamePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, time.Time{}, false
	}

	start, err := time.Parse(TimeLayout, m[1])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(TimeLayout, m[2])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
