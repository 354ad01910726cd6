package entity

import "strings"

// Region is an administrative district polled independently each cycle.
type Region struct {
	ID   string `yaml:"id" validate:"required,numeric"`
	Name string `yaml:"name"`
}

// DefaultRegions are the districts polled when nothing else is configured.
func DefaultRegions() []Region {
	return []Region{
		{ID: "571", Name: "Chennai"},
		{ID: "572", Name: "Tiruvallur"},
	}
}

// ParseRegionIDs builds regions from a comma separated list of district ids.
// Blank entries are skipped.
func ParseRegionIDs(list string) []Region {
	var regions []Region
	for _, part := range strings.Split(list, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		regions = append(regions, Region{ID: id})
	}
	return regions
}

// Label returns the human readable name, falling back to the id.
func (r Region) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}
