// Package model defines the domain types shared by the recommendation and
// feedback packages.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// Clarity is the categorical water turbidity estimate.
type Clarity string

const (
	ClarityClear   Clarity = "Clear"
	ClarityStained Clarity = "Stained"
	ClarityMuddy   Clarity = "Muddy"
)

// Cover is the dominant structure at the fishing spot.
type Cover string

const (
	CoverGrass Cover = "Grass"
	CoverWood  Cover = "Wood"
	CoverRock  Cover = "Rock"
	CoverOpen  Cover = "Open"
)

// TimeOfDay is a coarse daylight bucket.
type TimeOfDay string

const (
	TimeMorning TimeOfDay = "Morning"
	TimeMidday  TimeOfDay = "Midday"
	TimeEvening TimeOfDay = "Evening"
	TimeNight   TimeOfDay = "Night"
)

// Season uses a Northern-hemisphere calendar mapping.
type Season string

const (
	SeasonSpring Season = "Spring"
	SeasonSummer Season = "Summer"
	SeasonFall   Season = "Fall"
	SeasonWinter Season = "Winter"
)

// SpawnPhase is the inferred reproductive stage of the target species.
type SpawnPhase string

const (
	SpawnNone SpawnPhase = "None"
	SpawnPre  SpawnPhase = "Pre-Spawn"
	SpawnOn   SpawnPhase = "Spawn"
	SpawnPost SpawnPhase = "Post-Spawn"
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Conditions is the scoring input. Every field stays nil until resolved.
type Conditions struct {
	Clarity     *Clarity     `json:"clarity,omitempty"`
	Cover       *Cover       `json:"cover,omitempty"`
	TimeOfDay   *TimeOfDay   `json:"time_of_day,omitempty"`
	Season      *Season      `json:"season,omitempty"`
	SpawnPhase  *SpawnPhase  `json:"spawn_phase,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Ready reports whether the fields required for scoring are set.
func (c Conditions) Ready() bool {
	return c.Clarity != nil && c.Cover != nil
}

// TimeOrDefault returns the time-of-day bucket, or Morning when unset.
func (c Conditions) TimeOrDefault() TimeOfDay {
	if c.TimeOfDay == nil {
		return TimeMorning
	}
	return *c.TimeOfDay
}

// SeasonOrDefault returns the season, or Summer when unset.
func (c Conditions) SeasonOrDefault() Season {
	if c.Season == nil {
		return SeasonSummer
	}
	return *c.Season
}

// SpawnOrDefault returns the spawn phase, or None when unset.
func (c Conditions) SpawnOrDefault() SpawnPhase {
	if c.SpawnPhase == nil {
		return SpawnNone
	}
	return *c.SpawnPhase
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// matchValue finds the canonical value whose folded form (or one of its
// aliases) equals the folded input.
func matchValue[T ~string](kind, in string, values []T, aliases map[string]T) (T, error) {
	folder := cases.Fold()
	key := folder.String(strings.TrimSpace(in))
	for _, v := range values {
		if folder.String(string(v)) == key {
			return v, nil
		}
	}
	if v, ok := aliases[key]; ok {
		return v, nil
	}
	var zero T
	return zero, eris.Errorf("model: unknown %s %q", kind, in)
}

// ParseClarity parses a clarity name case-insensitively.
func ParseClarity(s string) (Clarity, error) {
	return matchValue("clarity", s,
		[]Clarity{ClarityClear, ClarityStained, ClarityMuddy},
		map[string]Clarity{"open": ClarityClear, "open/clear": ClarityClear},
	)
}

// ParseCover parses a cover name case-insensitively. "Rocky" and
// "Clear (Open)" are accepted as the labels shown to users.
func ParseCover(s string) (Cover, error) {
	return matchValue("cover", s,
		[]Cover{CoverGrass, CoverWood, CoverRock, CoverOpen},
		map[string]Cover{"rocky": CoverRock, "clear (open)": CoverOpen, "clear": CoverOpen},
	)
}

// ParseTimeOfDay parses a time-of-day bucket name.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	return matchValue("time of day", s,
		[]TimeOfDay{TimeMorning, TimeMidday, TimeEvening, TimeNight},
		nil,
	)
}

// ParseSeason parses a season name.
func ParseSeason(s string) (Season, error) {
	return matchValue("season", s,
		[]Season{SeasonSpring, SeasonSummer, SeasonFall, SeasonWinter},
		map[string]Season{"autumn": SeasonFall},
	)
}

// ParseSpawnPhase parses a spawn phase. Hyphens are optional.
func ParseSpawnPhase(s string) (SpawnPhase, error) {
	return matchValue("spawn phase", s,
		[]SpawnPhase{SpawnNone, SpawnPre, SpawnOn, SpawnPost},
		map[string]SpawnPhase{"prespawn": SpawnPre, "pre": SpawnPre, "postspawn": SpawnPost, "post": SpawnPost},
	)
}
