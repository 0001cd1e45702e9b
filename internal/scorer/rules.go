package scorer

import "github.com/sells-group/lureiq/internal/model"

// RuleGroup names the condition family a rule reads.
type RuleGroup string

const (
	GroupCover   RuleGroup = "cover"
	GroupClarity RuleGroup = "clarity"
	GroupTime    RuleGroup = "time"
	GroupSeason  RuleGroup = "season"
	GroupSpawn   RuleGroup = "spawn"
)

// Delta is a signed adjustment applied to one lure's score.
type Delta struct {
	Lure   string
	Amount float64
}

// Rule adds its deltas whenever When matches. Rules are independent and
// additive, so their order never changes the final scores.
type Rule struct {
	Group  RuleGroup
	Name   string
	When   func(in input) bool
	Deltas []Delta
}

// input is a fully defaulted view of model.Conditions used by predicates.
type input struct {
	clarity model.Clarity
	cover   model.Cover
	time    model.TimeOfDay
	season  model.Season
	spawn   model.SpawnPhase
}

func newInput(c model.Conditions) input {
	return input{
		clarity: *c.Clarity,
		cover:   *c.Cover,
		time:    c.TimeOrDefault(),
		season:  c.SeasonOrDefault(),
		spawn:   c.SpawnOrDefault(),
	}
}

func (in input) lowLight() bool {
	return in.time == model.TimeMorning || in.time == model.TimeEvening
}

func d(lure string, amount float64) Delta {
	return Delta{Lure: lure, Amount: amount}
}

// DefaultRules returns the built-in adjustment table.
func DefaultRules() []Rule {
	return []Rule{
		// Cover
		{GroupCover, "grass", func(in input) bool { return in.cover == model.CoverGrass },
			[]Delta{d(SwimJig, 3), d(Chatterbait, 3)}},
		{GroupCover, "grass in fall", func(in input) bool {
			return in.cover == model.CoverGrass && in.season == model.SeasonFall
		}, []Delta{d(LiplessCrankbait, 3)}},
		{GroupCover, "grass on summer low light", func(in input) bool {
			return in.cover == model.CoverGrass && in.season == model.SeasonSummer && in.lowLight()
		}, []Delta{d(PoppingFrog, 3)}},
		{GroupCover, "wood", func(in input) bool { return in.cover == model.CoverWood },
			[]Delta{d(FlippingJig, 3), d(TexasRiggedCreature, 2)}},
		{GroupCover, "wood in summer afternoon", func(in input) bool {
			return in.cover == model.CoverWood && in.season == model.SeasonSummer &&
				(in.time == model.TimeMidday || in.time == model.TimeEvening)
		}, []Delta{d(CarolinaRig, 2)}},
		{GroupCover, "rock", func(in input) bool { return in.cover == model.CoverRock },
			[]Delta{d(FootballJig, 3)}},
		{GroupCover, "rock in transition seasons", func(in input) bool {
			return in.cover == model.CoverRock && (in.season == model.SeasonSpring || in.season == model.SeasonFall)
		}, []Delta{d(SquarebillCrankbait, 2)}},
		{GroupCover, "rock in summer", func(in input) bool {
			return in.cover == model.CoverRock && in.season == model.SeasonSummer
		}, []Delta{d(CarolinaRig, 2)}},
		{GroupCover, "clear rock in winter", func(in input) bool {
			return in.cover == model.CoverRock && in.season == model.SeasonWinter && in.clarity == model.ClarityClear
		}, []Delta{d(Jerkbait, 3)}},
		{GroupCover, "rock in winter", func(in input) bool {
			return in.cover == model.CoverRock && in.season == model.SeasonWinter
		}, []Delta{d(BladeBait, 3)}},
		{GroupCover, "open water low light", func(in input) bool {
			return in.cover == model.CoverOpen && in.lowLight()
		}, []Delta{d(WalkingTopwater, 3)}},
		{GroupCover, "clear open water in transition seasons", func(in input) bool {
			return in.cover == model.CoverOpen && in.clarity == model.ClarityClear &&
				(in.season == model.SeasonFall || in.season == model.SeasonSpring)
		}, []Delta{d(SoftSwimbait, 3)}},
		{GroupCover, "open water cold or pre-spawn", func(in input) bool {
			return in.cover == model.CoverOpen && in.clarity != model.ClarityMuddy &&
				(in.season == model.SeasonWinter || in.spawn == model.SpawnPre)
		}, []Delta{d(Underspin, 2)}},
		{GroupCover, "open water", func(in input) bool { return in.cover == model.CoverOpen },
			[]Delta{d(DropShot, 1)}},
		{GroupCover, "clear open water", func(in input) bool {
			return in.cover == model.CoverOpen && in.clarity == model.ClarityClear
		}, []Delta{d(NedRig, 2)}},
		{GroupCover, "colored open water", func(in input) bool {
			return in.cover == model.CoverOpen && in.clarity != model.ClarityClear
		}, []Delta{d(WeightlessSenko, 1)}},

		// Clarity
		{GroupClarity, "clear, cold or pre-spawn", func(in input) bool {
			return in.clarity == model.ClarityClear && (in.season == model.SeasonWinter || in.spawn == model.SpawnPre)
		}, []Delta{d(Jerkbait, 2)}},
		{GroupClarity, "clear, otherwise", func(in input) bool {
			return in.clarity == model.ClarityClear && in.season != model.SeasonWinter && in.spawn != model.SpawnPre
		}, []Delta{d(Jerkbait, 1)}},
		{GroupClarity, "clear", func(in input) bool { return in.clarity == model.ClarityClear },
			[]Delta{d(SoftSwimbait, 1), d(NedRig, 2), d(Spinnerbait, -1)}},
		{GroupClarity, "stained", func(in input) bool { return in.clarity == model.ClarityStained },
			[]Delta{d(Chatterbait, 1), d(Spinnerbait, 1)}},
		{GroupClarity, "muddy", func(in input) bool { return in.clarity == model.ClarityMuddy },
			[]Delta{d(Chatterbait, 2), d(Spinnerbait, 2), d(LiplessCrankbait, -2), d(Jerkbait, -3), d(NedRig, -2)}},

		// Time of day
		{GroupTime, "low light", func(in input) bool { return in.lowLight() },
			[]Delta{d(WalkingTopwater, 2), d(Chatterbait, 1)}},
		{GroupTime, "low light over grass", func(in input) bool {
			return in.lowLight() && in.cover == model.CoverGrass
		}, []Delta{d(PoppingFrog, 2)}},
		{GroupTime, "midday", func(in input) bool { return in.time == model.TimeMidday },
			[]Delta{d(CarolinaRig, 1), d(FootballJig, 1), d(DropShot, 1)}},

		// Season
		{GroupSeason, "winter", func(in input) bool { return in.season == model.SeasonWinter },
			[]Delta{d(BladeBait, 2), d(FootballJig, 1), d(DropShot, 1), d(WalkingTopwater, -3), d(PoppingFrog, -4)}},
		{GroupSeason, "clear winter", func(in input) bool {
			return in.season == model.SeasonWinter && in.clarity == model.ClarityClear
		}, []Delta{d(Jerkbait, 2)}},
		{GroupSeason, "spring", func(in input) bool { return in.season == model.SeasonSpring },
			[]Delta{d(Chatterbait, 2), d(WeightlessSenko, 1), d(TexasRiggedCreature, 1)}},
		{GroupSeason, "summer", func(in input) bool { return in.season == model.SeasonSummer },
			[]Delta{d(CarolinaRig, 1), d(SwimJig, 1), d(WalkingTopwater, 1)}},
		{GroupSeason, "summer grass", func(in input) bool {
			return in.season == model.SeasonSummer && in.cover == model.CoverGrass
		}, []Delta{d(PoppingFrog, 2)}},
		{GroupSeason, "fall", func(in input) bool { return in.season == model.SeasonFall },
			[]Delta{d(LiplessCrankbait, 2)}},
		{GroupSeason, "fall, not muddy", func(in input) bool {
			return in.season == model.SeasonFall && in.clarity != model.ClarityMuddy
		}, []Delta{d(Spinnerbait, 2)}},
		{GroupSeason, "clear fall", func(in input) bool {
			return in.season == model.SeasonFall && in.clarity == model.ClarityClear
		}, []Delta{d(SoftSwimbait, 1)}},

		// Spawn
		{GroupSpawn, "pre-spawn", func(in input) bool { return in.spawn == model.SpawnPre },
			[]Delta{d(Chatterbait, 2)}},
		{GroupSpawn, "clear pre-spawn", func(in input) bool {
			return in.spawn == model.SpawnPre && in.clarity == model.ClarityClear
		}, []Delta{d(Jerkbait, 1)}},
		{GroupSpawn, "spawn", func(in input) bool { return in.spawn == model.SpawnOn },
			[]Delta{d(WeightlessSenko, 3), d(TexasRiggedCreature, 3), d(Jerkbait, -3), d(LiplessCrankbait, -2)}},
		{GroupSpawn, "post-spawn", func(in input) bool { return in.spawn == model.SpawnPost },
			[]Delta{d(SoftSwimbait, 2), d(WalkingTopwater, 2), d(SwimJig, 1)}},
	}
}

// ColorFor maps water clarity to a display color band.
func ColorFor(c model.Clarity) string {
	switch c {
	case model.ClarityClear:
		return ColorNatural
	case model.ClarityStained:
		return ColorChartreuse
	case model.ClarityMuddy:
		return ColorBlackBlue
	default:
		return "Green Pumpkin"
	}
}

// Display color bands.
const (
	ColorNatural    = "Natural (Green Pumpkin/Watermelon/Shad)"
	ColorChartreuse = "Chartreuse/White or Junebug"
	ColorBlackBlue  = "Black/Blue"
)
