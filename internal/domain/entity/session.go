package entity

import (
	"encoding/json"
	"strings"
)

// Session is one bookable vaccination session at a center on a given date,
// flattened from the availability API response.
//
// Capacity and age fields are pointers: nil means the upstream payload did not
// carry the field, which is different from an explicit zero.
type Session struct {
	ID           string `json:"session_id" validate:"required"`
	CenterID     int64  `json:"center_id"`
	CenterName   string `json:"name" validate:"required"`
	DistrictName string `json:"district_name"`
	StateName    string `json:"state_name"`
	Pincode      string `json:"pincode"`
	FeeType      string `json:"fee_type"`
	Date         string `json:"date"` // dd-mm-yyyy as returned upstream
	Vaccine      string `json:"vaccine"`
	Fee          string `json:"fee,omitempty"`

	AvailableCapacity *int `json:"available_capacity"`
	Dose1Capacity     *int `json:"available_capacity_dose1"`
	Dose2Capacity     *int `json:"available_capacity_dose2"`
	MinAgeLimit       *int `json:"min_age_limit"`

	Slots []string `json:"slots,omitempty"`

	// Raw is the session object exactly as received, kept for record snapshots.
	Raw json.RawMessage `json:"-"`
}

// Snapshot returns the JSON stored alongside a notification record.
// The upstream object is preferred; the normalized form is used when it is absent.
func (s *Session) Snapshot() []byte {
	if len(s.Raw) > 0 {
		return append([]byte(nil), s.Raw...)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return b
}

// DisplayDate returns the session date with '/' separators (dd/mm/yyyy).
func (s *Session) DisplayDate() string {
	return strings.ReplaceAll(s.Date, "-", "/")
}

// IntValue dereferences an optional capacity, treating nil as zero.
func IntValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
