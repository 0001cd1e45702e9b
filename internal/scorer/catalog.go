// Package scorer implements the weighted lure recommendation heuristic.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Lure names used by the built-in catalog and rule table.
const (
	TexasRiggedCreature = "Texas-Rigged Creature"
	WeightlessSenko     = "Weightless Senko"
	DropShot            = "Drop Shot"
	Chatterbait         = "Chatterbait"
	SwimJig             = "Swim Jig"
	FlippingJig         = "Flipping Jig"
	FootballJig         = "Football Jig"
	SquarebillCrankbait = "Squarebill Crankbait"
	BladeBait           = "Blade Bait"
	Spinnerbait         = "Spinnerbait"
	WalkingTopwater     = "Topwater (Walking Bait)"
	Buzzbait            = "Buzzbait"
	LiplessCrankbait    = "Lipless Crankbait"
	PoppingFrog         = "Popping Frog"
	Jerkbait            = "Jerkbait"
	SoftSwimbait        = "Soft Swimbait"
	NedRig              = "Ned Rig"
	CarolinaRig         = "Carolina Rig"
	Underspin           = "Underspin"
)

// Lure is one catalog entry: a base weight plus static presentation metadata.
type Lure struct {
	Name       string  `yaml:"name" json:"name"`
	BaseWeight float64 `yaml:"base_weight" json:"base_weight"`
	Retrieve   string  `yaml:"retrieve" json:"retrieve"`
	Depth      string  `yaml:"depth" json:"depth"`
}

// Catalog is an ordered list of lures. Order matters only when ties are
// broken without a tiebreaker: the earliest entry wins.
type Catalog []Lure

// Lookup returns the lure with the given name.
func (c Catalog) Lookup(name string) (Lure, bool) {
	for _, l := range c {
		if l.Name == name {
			return l, true
		}
	}
	return Lure{}, false
}

// Names returns the lure names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, l := range c {
		names[i] = l.Name
	}
	return names
}

// DefaultCatalog returns the built-in 19-lure catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		{Name: TexasRiggedCreature, BaseWeight: 2, Retrieve: "Pitch/drag with pauses", Depth: "2–8 ft"},
		{Name: WeightlessSenko, BaseWeight: 2, Retrieve: "Slow sink; short twitches", Depth: "2–10 ft"},
		{Name: DropShot, BaseWeight: 1, Retrieve: "Twitch-shake in place", Depth: "10–25 ft"},
		{Name: Chatterbait, BaseWeight: 2, Retrieve: "Steady; rip free from grass", Depth: "2–6 ft"},
		{Name: SwimJig, BaseWeight: 2, Retrieve: "Slow roll edges/lanes", Depth: "2–6 ft"},
		{Name: FlippingJig, BaseWeight: 2, Retrieve: "Pitch to targets; short hops", Depth: "2–10 ft"},
		{Name: FootballJig, BaseWeight: 2, Retrieve: "Drag bottom; occasional hops", Depth: "8–15 ft"},
		{Name: SquarebillCrankbait, BaseWeight: 1, Retrieve: "Deflect off rock/cover", Depth: "3–6 ft"},
		{Name: BladeBait, BaseWeight: 1, Retrieve: "Lift-drop near bottom", Depth: "10–25 ft"},
		{Name: Spinnerbait, BaseWeight: 1, Retrieve: "Burn then pause", Depth: "2–8 ft"},
		{Name: WalkingTopwater, BaseWeight: 1, Retrieve: "Walk-the-dog", Depth: "Surface"},
		{Name: Buzzbait, BaseWeight: 1, Retrieve: "Steady buzz", Depth: "Surface"},
		{Name: LiplessCrankbait, BaseWeight: 1, Retrieve: "Burn/yo-yo over grass", Depth: "2–6 ft"},
		{Name: PoppingFrog, BaseWeight: 1, Retrieve: "Pop/twitch over mats", Depth: "Surface"},
		{Name: Jerkbait, BaseWeight: 1, Retrieve: "Twitch-twitch, long pause", Depth: "4–8 ft"},
		{Name: SoftSwimbait, BaseWeight: 1, Retrieve: "Slow roll mid-column", Depth: "3–10 ft"},
		{Name: NedRig, BaseWeight: 1, Retrieve: "Short hops; deadstick", Depth: "6–20 ft"},
		{Name: CarolinaRig, BaseWeight: 1, Retrieve: "Drag along points/ledges", Depth: "8–20 ft"},
		{Name: Underspin, BaseWeight: 1, Retrieve: "Slow roll near bait balls", Depth: "6–15 ft"},
	}
}

// ValidateCatalog checks that a catalog is usable for scoring.
func ValidateCatalog(c Catalog) error {
	var errs []string

	if len(c) == 0 {
		errs = append(errs, "catalog must contain at least one lure")
	}

	seen := make(map[string]bool, len(c))
	for i, l := range c {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			errs = append(errs, fmt.Sprintf("lure %d: name is required", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("lure %q: duplicate name", name))
		}
		seen[name] = true
		if l.Retrieve == "" {
			errs = append(errs, fmt.Sprintf("lure %q: retrieve is required", name))
		}
		if l.Depth == "" {
			errs = append(errs, fmt.Sprintf("lure %q: depth is required", name))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: catalog validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
