// Package slots computes bookable interview windows from a system's
// scheduling configuration and its interviewers' busy intervals.
package slots

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
)

// Config is the InterviewSlotConfig of one (team, system). It is edited
// outside this service and read-only here.
type Config struct {
	Team               string   `json:"team" yaml:"team"`
	System             string   `json:"system" yaml:"system"`
	CalendarID         string   `json:"calendarId" yaml:"calendarId"`
	InterviewerEmails  []string `json:"interviewerEmails" yaml:"interviewerEmails"`
	DurationMinutes    int      `json:"durationMinutes" yaml:"durationMinutes"`
	BufferMinutes      int      `json:"bufferMinutes" yaml:"bufferMinutes"`
	AvailableDays      []int    `json:"availableDays" yaml:"availableDays"` // 0 = Sunday
	AvailableStartHour int      `json:"availableStartHour" yaml:"availableStartHour"`
	AvailableEndHour   int      `json:"availableEndHour" yaml:"availableEndHour"`
	Timezone           string   `json:"timezone" yaml:"timezone"`
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether i and o share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// ErrConfigMissing marks a configuration that cannot produce slots. It wraps
// pipeline.ErrMisconfigured.
var ErrConfigMissing = fmt.Errorf("%w: interview slot configuration incomplete", pipeline.ErrMisconfigured)

// Validate returns ErrConfigMissing with detail when c is unusable, and the
// loaded timezone otherwise.
func (c Config) Validate() (*time.Location, error) {
	switch {
	case c.CalendarID == "":
		return nil, fmt.Errorf("%w: no calendar", ErrConfigMissing)
	case len(c.InterviewerEmails) == 0:
		return nil, fmt.Errorf("%w: no interviewers", ErrConfigMissing)
	case c.DurationMinutes <= 0:
		return nil, fmt.Errorf("%w: duration must be positive", ErrConfigMissing)
	case c.BufferMinutes < 0:
		return nil, fmt.Errorf("%w: buffer must not be negative", ErrConfigMissing)
	case c.AvailableStartHour < 0 || c.AvailableEndHour > 24 || c.AvailableStartHour >= c.AvailableEndHour:
		return nil, fmt.Errorf("%w: available hours %d-%d", ErrConfigMissing, c.AvailableStartHour, c.AvailableEndHour)
	}
	for _, d := range c.AvailableDays {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: available day %d", ErrConfigMissing, d)
		}
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q", ErrConfigMissing, c.Timezone)
	}
	return loc, nil
}

// ConfigStore reads and writes slot configurations.
type ConfigStore interface {
	GetSlotConfig(ctx context.Context, team, system string) (*Config, error)
	UpsertSlotConfig(ctx context.Context, c Config) error
	ListSlotConfigs(ctx context.Context) ([]Config, error)
}

// seedFile is the yaml layout accepted by DecodeConfigs.
type seedFile struct {
	Configs []Config `yaml:"configs"`
}

// DecodeConfigs reads a yaml document with a top-level configs list.
func DecodeConfigs(r io.Reader) ([]Config, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode slot configs: %w", err)
	}
	for i, c := range f.Configs {
		if c.Team == "" || c.System == "" {
			return nil, fmt.Errorf("slot config %d: team and system are required", i)
		}
	}
	return f.Configs, nil
}
