package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildTranscriptPath returns the archive key for a transcript named name
// that was saved at the given time, partitioned by UTC date.
func BuildTranscriptPath(name string, savedAt time.Time) (string, error) {
	if err := validatePathComponent(name, "transcript name"); err != nil {
		return "", err
	}
	ts := savedAt.UTC()
	return path.Join(
		"transcripts",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%02d%02d%02d.json", name, ts.Hour(), ts.Minute(), ts.Second()),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
