package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"vaxslot-notifier/internal/domain/entity"
	"vaxslot-notifier/internal/pkg/validate"

	"gopkg.in/yaml.v3"
)

// ErrNoRegions is returned when a region source yields an empty list.
var ErrNoRegions = errors.New("no regions configured")

// RegionsConfig chooses where the polled districts come from.
// RegionsFile wins over Regions; with neither set the default districts apply.
type RegionsConfig struct {
	Regions     string `env:"REGIONS"`
	RegionsFile string `env:"REGIONS_FILE"`
}

// LoadRegions resolves the districts to poll. Values set in flags (from
// --regions and --regions-file) replace the environment's selection as a
// whole.
func LoadRegions(flags RegionsConfig) ([]entity.Region, error) {
	var cfg RegionsConfig
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if flags.Regions != "" || flags.RegionsFile != "" {
		cfg = flags
	}
	return cfg.Resolve()
}

// Resolve returns the validated region list.
func (c RegionsConfig) Resolve() ([]entity.Region, error) {
	var regions []entity.Region
	switch {
	case c.RegionsFile != "":
		r, err := ReadRegionsFile(c.RegionsFile)
		if err != nil {
			return nil, err
		}
		regions = r
	case c.Regions != "":
		regions = entity.ParseRegionIDs(c.Regions)
	default:
		return entity.DefaultRegions(), nil
	}

	if len(regions) == 0 {
		return nil, ErrNoRegions
	}
	seen := make(map[string]bool, len(regions))
	for i, r := range regions {
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("region %d: duplicate id %s", i, r.ID)
		}
		seen[r.ID] = true
	}
	return regions, nil
}

// ReadRegionsFile parses a YAML list of {id, name} entries.
//
//	- id: "571"
//	  name: Chennai
//	- id: "572"
//	  name: Tiruvallur
func ReadRegionsFile(path string) ([]entity.Region, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}

	var regions []entity.Region
	if err := yaml.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("parse regions file %s: %w", path, err)
	}
	return regions, nil
}
