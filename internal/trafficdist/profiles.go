// Package trafficdist disaggregates directional AADT into expected volume
// fractions per day of week and time bin using the FHWA traffic
// distribution profiles.
//
// The embedded static/*.json profiles and DowAdjustmentFactors are
// placeholder shapes with the published structure (40 profiles, 288
// five-minute fractions per day summing to 1). They are not the FHWA
// values. Replace them with the published tables before reporting any
// PHED result.
package trafficdist

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/npmrds-measures/calculator/internal/calendar"
	"github.com/npmrds-measures/calculator/internal/npmrds"
)

// ProfilesVersion selects one of the canonical profile datasets.
type ProfilesVersion string

const (
	// AVAIL profiles are published at 5-minute resolution.
	AVAIL ProfilesVersion = "AVAIL"
	// CATTLAB profiles are hourly.
	CATTLAB ProfilesVersion = "CATTLAB"
)

var ProfilesVersions = []ProfilesVersion{AVAIL, CATTLAB}

type DayType string

const (
	Weekday DayType = "WEEKDAY"
	Weekend DayType = "WEEKEND"
)

var ErrUnknownProfile = errors.New("unknown traffic distribution profile")

// Profile is a day's traffic volume fractions at 5-minute resolution.
type Profile [calendar.EpochsPerDay]float64

// DowAdjustmentFactors scale a day type's profile to a specific day of week,
// Sunday first. They average to 1 across the week. Placeholder values; see
// the package doc.
var DowAdjustmentFactors = [7]float64{0.80, 1.00, 1.02, 1.03, 1.05, 1.12, 0.98}

//go:embed static/*.json
var staticFS embed.FS

var profiles5Min = mustLoadProfiles()

func mustLoadProfiles() map[ProfilesVersion]map[string]*Profile {
	avail, err := loadProfiles("static/avail_profiles.json", 5)
	if err != nil {
		panic(err)
	}
	cattlab, err := loadProfiles("static/cattlab_profiles.json", 60)
	if err != nil {
		panic(err)
	}
	return map[ProfilesVersion]map[string]*Profile{AVAIL: avail, CATTLAB: cattlab}
}

// loadProfiles reads profiles of the given native bin size and expands each
// native bin evenly over the 5-minute epochs it covers.
func loadProfiles(path string, nativeBinSize int) (map[string]*Profile, error) {
	raw, err := staticFS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var native map[string][]float64
	if err := json.Unmarshal(raw, &native); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	epochsPerBin := nativeBinSize / 5
	out := make(map[string]*Profile, len(native))
	for name, fractions := range native {
		if len(fractions)*epochsPerBin != calendar.EpochsPerDay {
			return nil, fmt.Errorf("%s: profile %s has %d bins, want %d",
				path, name, len(fractions), calendar.EpochsPerDay/epochsPerBin)
		}
		var p Profile
		for i, f := range fractions {
			if f < 0 {
				return nil, fmt.Errorf("%s: profile %s has a negative fraction", path, name)
			}
			for j := 0; j < epochsPerBin; j++ {
				p[i*epochsPerBin+j] = f / float64(epochsPerBin)
			}
		}
		out[name] = &p
	}
	return out, nil
}

// DayTypeForDow maps Saturday and Sunday to Weekend.
func DayTypeForDow(dow time.Weekday) DayType {
	if dow == time.Saturday || dow == time.Sunday {
		return Weekend
	}
	return Weekday
}

// ProfileName selects the canonical profile for a segment class. Weekend
// profiles depend only on the functional class.
func ProfileName(dayType DayType, congestion npmrds.CongestionLevel, directionality npmrds.Directionality, fc npmrds.FunctionalClass) string {
	if dayType == Weekend {
		return fmt.Sprintf("%s_%s", Weekend, fc)
	}
	return fmt.Sprintf("%s_%s_%s_%s", Weekday, fc, congestion, directionality)
}

// ProfileNames lists the profile names of a version.
func ProfileNames(version ProfilesVersion) []string {
	return lo.Keys(profiles5Min[version])
}

// Profile5Min returns a canonical profile at 5-minute resolution.
func Profile5Min(version ProfilesVersion, name string) (*Profile, error) {
	byName, ok := profiles5Min[version]
	if !ok {
		return nil, fmt.Errorf("%w: version %s", ErrUnknownProfile, version)
	}
	p, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownProfile, version, name)
	}
	return p, nil
}
