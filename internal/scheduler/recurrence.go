package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/content-pipeline/internal/db"
)

// Frequency values for recurring schedules.
const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
	FrequencyMonthly  = "monthly"
)

// maxRecurrenceDates caps expansion when neither End nor Count would stop it
// first.
const maxRecurrenceDates = 366

// RecurrenceSpec describes a recurring schedule. Expansion terminates on the
// end date or the count cap, whichever comes first; at least one of the two
// must be set.
type RecurrenceSpec struct {
	TitleTemplate string     `json:"title_template" validate:"required"`
	Frequency     string     `json:"frequency" validate:"required,oneof=daily weekly biweekly monthly"`
	Start         time.Time  `json:"start" validate:"required"`
	End           *time.Time `json:"end,omitempty"`
	Count         int        `json:"count,omitempty" validate:"gte=0,lte=366"`
}

var validate = validator.New()

// Validate checks the spec's fields and cross-field constraints.
func (s RecurrenceSpec) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid recurrence spec: %w", err)
	}
	if s.End == nil && s.Count == 0 {
		return fmt.Errorf("invalid recurrence spec: needs an end date or a count")
	}
	if s.End != nil && s.End.Before(s.Start) {
		return fmt.Errorf("invalid recurrence spec: end %s before start %s",
			s.End.Format(time.DateOnly), s.Start.Format(time.DateOnly))
	}
	return nil
}

// Dates expands the spec into its scheduled dates. Start anchors the series;
// the first occurrence falls one interval after it. Monthly advances by
// calendar month; the other frequencies advance by fixed day intervals.
func (s RecurrenceSpec) Dates() ([]time.Time, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	limit := s.Count
	if limit <= 0 || limit > maxRecurrenceDates {
		limit = maxRecurrenceDates
	}

	var dates []time.Time
	current := s.next(s.Start)
	for len(dates) < limit {
		if s.End != nil && current.After(*s.End) {
			break
		}
		dates = append(dates, current)
		current = s.next(current)
	}
	return dates, nil
}

func (s RecurrenceSpec) next(t time.Time) time.Time {
	switch s.Frequency {
	case FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return t.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return t.AddDate(0, 1, 0)
	}
	return t
}

// Entries expands the spec into schedule entry inputs, one per date, with
// the occurrence number and date substituted into the title template
// ({n} and {date}).
func (s RecurrenceSpec) Entries() ([]db.ScheduleEntryInput, error) {
	dates, err := s.Dates()
	if err != nil {
		return nil, err
	}

	entries := make([]db.ScheduleEntryInput, 0, len(dates))
	for i, date := range dates {
		title := strings.ReplaceAll(s.TitleTemplate, "{n}", fmt.Sprintf("%d", i+1))
		title = strings.ReplaceAll(title, "{date}", date.Format(time.DateOnly))
		entries = append(entries, db.ScheduleEntryInput{Title: title, ScheduledFor: date})
	}
	return entries, nil
}
