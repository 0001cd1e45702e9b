// Package conditions derives the categorical fishing conditions (time of
// day, season, clarity guess, spawn phase) from clock and weather data.
package conditions

import (
	"math"
	"time"

	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/pkg/weather"
)

const (
	sunWindow          = 2 * time.Hour
	clarityLookback    = 12 // hourly samples before the nearest hour
	waterLookback      = 72 * time.Hour
	defaultWaterTempF  = 55.0
	waterOffsetF       = 5.0
	minWaterF          = 35.0
	maxWaterF          = 90.0
	northSpawnLatitude = 37.0
)

// TimeOfDay buckets now against sunrise and sunset when both are known and
// against fixed clock bands otherwise. Before sunrise on a day with known
// sun times is classified Evening, since it is still before sunset.
func TimeOfDay(now time.Time, sunrise, sunset *time.Time) model.TimeOfDay {
	if sunrise == nil || sunset == nil {
		return clockTimeOfDay(now)
	}
	afterSunrise := now.Sub(*sunrise)
	beforeSunset := sunset.Sub(now)
	switch {
	case afterSunrise >= 0 && afterSunrise < sunWindow:
		return model.TimeMorning
	case afterSunrise >= sunWindow && beforeSunset > sunWindow:
		return model.TimeMidday
	case beforeSunset >= 0:
		return model.TimeEvening
	}
	return model.TimeNight
}

func clockTimeOfDay(now time.Time) model.TimeOfDay {
	switch h := now.Hour(); {
	case h < 6:
		return model.TimeNight
	case h < 11:
		return model.TimeMorning
	case h < 17:
		return model.TimeMidday
	case h < 21:
		return model.TimeEvening
	}
	return model.TimeNight
}

// SeasonFor maps the calendar month to a northern-hemisphere season.
// November maps to Winter, not Fall; recommendations were tuned against
// that table so it is kept.
func SeasonFor(now time.Time) model.Season {
	switch now.Month() {
	case time.January, time.February:
		return model.SeasonWinter
	case time.March, time.April, time.May:
		return model.SeasonSpring
	case time.June, time.July, time.August:
		return model.SeasonSummer
	case time.September, time.October:
		return model.SeasonFall
	}
	return model.SeasonWinter
}

// nearestHour returns the index of the sample closest to now, or -1.
func nearestHour(hours []weather.Hour, now time.Time) int {
	idx := -1
	best := time.Duration(math.MaxInt64)
	for i, h := range hours {
		d := h.Time.Sub(now)
		if d < 0 {
			d = -d
		}
		if d < best {
			best = d
			idx = i
		}
	}
	return idx
}

// RecentPrecipitationMM sums precipitation over the nearest sample to now
// and the 12 samples before it. Missing values count as zero.
func RecentPrecipitationMM(hours []weather.Hour, now time.Time) float64 {
	end := nearestHour(hours, now)
	if end < 0 {
		return 0
	}
	var total float64
	for i := max(0, end-clarityLookback); i <= end; i++ {
		if p := hours[i].PrecipitationMM; p != nil {
			total += *p
		}
	}
	return total
}

// GuessClarity turns recent rainfall into a clarity bucket.
func GuessClarity(hours []weather.Hour, now time.Time) model.Clarity {
	switch total := RecentPrecipitationMM(hours, now); {
	case total > 15:
		return model.ClarityMuddy
	case total > 2:
		return model.ClarityStained
	}
	return model.ClarityClear
}

// EstimateWaterTempF averages afternoon (12:00-18:00 local) air
// temperatures from the trailing 72 hours, converts to Fahrenheit, offsets
// by -5F and clamps to [35, 90]. With no qualifying samples it returns 55
// and ok=false.
func EstimateWaterTempF(hours []weather.Hour, now time.Time) (tempF float64, ok bool) {
	var sum float64
	var n int
	for _, h := range hours {
		age := now.Sub(h.Time)
		if age < 0 || age > waterLookback || h.TemperatureC == nil {
			continue
		}
		if hr := h.Time.Hour(); hr < 12 || hr > 18 {
			continue
		}
		sum += celsiusToF(*h.TemperatureC)
		n++
	}
	if n == 0 {
		return defaultWaterTempF, false
	}
	est := sum/float64(n) - waterOffsetF
	return math.Max(minWaterF, math.Min(maxWaterF, est)), true
}

func celsiusToF(c float64) float64 {
	return c*9/5 + 32
}

// inSpawnWindow reports whether now falls in the latitude-dependent spring
// spawning window: April-June at or above 37N, March-May below.
func inSpawnWindow(now time.Time, lat float64) bool {
	m := now.Month()
	if lat >= northSpawnLatitude {
		return m >= time.April && m <= time.June
	}
	return m >= time.March && m <= time.May
}

// SpawnPhaseFor classifies the spawn phase from estimated water temperature.
// Spawn is checked before Post-Spawn, so Post-Spawn only applies above 75F.
func SpawnPhaseFor(waterF float64, now time.Time, lat float64) model.SpawnPhase {
	if !inSpawnWindow(now, lat) {
		return model.SpawnNone
	}
	switch {
	case waterF >= 60 && waterF <= 75:
		return model.SpawnOn
	case waterF >= 50 && waterF < 60:
		return model.SpawnPre
	case waterF > 70:
		return model.SpawnPost
	}
	return model.SpawnNone
}
