package poll

import (
	"context"
	"log/slog"

	"vaxslot-notifier/internal/domain/entity"
	"vaxslot-notifier/internal/observability/logging"
)

// EligibleAge is the only minimum age limit that qualifies a session.
const EligibleAge = 18

// IsEligible reports whether s has free capacity, free first-dose capacity
// and targets the 18+ group.
//
// A session missing any of the three fields is not eligible; the missing
// field is logged at debug level.
func IsEligible(ctx context.Context, s entity.Session) bool {
	if missing := missingEligibilityField(s); missing != "" {
		logging.FromContext(ctx).Debug("session lacks eligibility field",
			slog.String("session_id", s.ID),
			slog.String("field", missing))
		return false
	}

	return *s.AvailableCapacity > 0 &&
		*s.Dose1Capacity > 0 &&
		*s.MinAgeLimit == EligibleAge
}

func missingEligibilityField(s entity.Session) string {
	switch {
	case s.AvailableCapacity == nil:
		return "available_capacity"
	case s.Dose1Capacity == nil:
		return "available_capacity_dose1"
	case s.MinAgeLimit == nil:
		return "min_age_limit"
	}
	return ""
}
