package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the five field form used by the scheduler.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule checks a five field cron expression, e.g. "*/2 * * * *".
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

// ValidateTimezone checks an IANA zone name such as "Asia/Kolkata".
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("invalid timezone: cannot be empty")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", timezone, err)
	}
	return nil
}

// ValidateDuration checks min <= d <= max.
func ValidateDuration(d, min, max time.Duration) error {
	return inRange(d, min, max, "duration")
}

// ValidateIntRange checks min <= v <= max.
func ValidateIntRange(v, min, max int) error {
	return inRange(v, min, max, "value")
}

func inRange[T int | time.Duration](v, min, max T, what string) error {
	switch {
	case min > max:
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	case v < min:
		return fmt.Errorf("%s %v is below minimum %v", what, v, min)
	case v > max:
		return fmt.Errorf("%s %v exceeds maximum %v", what, v, max)
	}
	return nil
}
