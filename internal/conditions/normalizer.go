package conditions

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/pkg/weather"
)

// Status messages shown to the angler after autofill.
const (
	StatusAutofilled     = "Autofilled time/season/spawn. Two quick questions below."
	StatusNoLocation     = "Location unavailable. Quick 2 prompts below."
	StatusWeatherFailure = "Couldn't load weather. Answer the two prompts."
)

// Locator supplies the current coordinates, or nil when unknown.
type Locator interface {
	Locate(ctx context.Context) (*model.Coordinates, error)
}

// Snapshot is the result of one normalization pass. Clarity and cover in
// Conditions are always nil: clarity is offered as ClarityGuess for the
// angler to confirm.
type Snapshot struct {
	Conditions   model.Conditions `json:"conditions"`
	ClarityGuess *model.Clarity   `json:"clarity_guess,omitempty"`
	WaterTempF   *float64         `json:"water_temp_f,omitempty"`
	PrecipMM     *float64         `json:"precip_12h_mm,omitempty"`
	Sunrise      *time.Time       `json:"sunrise,omitempty"`
	Sunset       *time.Time       `json:"sunset,omitempty"`
	Status       string           `json:"status"`
}

// Normalizer resolves a Snapshot from location and weather collaborators.
type Normalizer struct {
	weather weather.Client
	locator Locator
	nowFunc func() time.Time
}

// NewNormalizer creates a Normalizer. Either collaborator may be nil, in
// which case Resolve falls back to the clock.
func NewNormalizer(w weather.Client, loc Locator) *Normalizer {
	return &Normalizer{weather: w, locator: loc, nowFunc: time.Now}
}

// FromClock derives time of day and season from now alone, with spawn
// phase None.
func FromClock(now time.Time) Snapshot {
	return Snapshot{
		Conditions: model.Conditions{
			TimeOfDay:  model.Ptr(clockTimeOfDay(now)),
			Season:     model.Ptr(SeasonFor(now)),
			SpawnPhase: model.Ptr(model.SpawnNone),
		},
	}
}

// Resolve never fails: every lookup problem degrades to the clock-based
// snapshot and is reported through Status.
func (n *Normalizer) Resolve(ctx context.Context) Snapshot {
	now := n.nowFunc()

	var coords *model.Coordinates
	if n.locator != nil {
		c, err := n.locator.Locate(ctx)
		if err != nil {
			zap.L().Warn("conditions: location lookup failed", zap.Error(err))
		}
		coords = c
	}
	if coords == nil || n.weather == nil {
		snap := FromClock(now)
		snap.Conditions.Coordinates = coords
		snap.Status = StatusNoLocation
		return snap
	}

	forecast, err := n.weather.Forecast(ctx, coords.Lat, coords.Lon)
	if err != nil {
		zap.L().Warn("conditions: weather lookup failed",
			zap.Float64("lat", coords.Lat),
			zap.Float64("lon", coords.Lon),
			zap.Error(err),
		)
		snap := FromClock(now)
		snap.Conditions.Coordinates = coords
		snap.Status = StatusWeatherFailure
		return snap
	}

	snap := FromForecast(forecast, now, *coords)
	zap.L().Debug("conditions: resolved",
		zap.String("time_of_day", string(*snap.Conditions.TimeOfDay)),
		zap.String("season", string(*snap.Conditions.Season)),
		zap.String("spawn_phase", string(*snap.Conditions.SpawnPhase)),
		zap.String("clarity_guess", string(*snap.ClarityGuess)),
	)
	return snap
}

// FromForecast derives every field from a fetched forecast.
func FromForecast(f *weather.Forecast, now time.Time, coords model.Coordinates) Snapshot {
	local := f.Local(now)
	sunrise, sunset := f.SunTimes(now)
	waterF, _ := EstimateWaterTempF(f.Hours, now)
	precip := RecentPrecipitationMM(f.Hours, now)

	return Snapshot{
		Conditions: model.Conditions{
			TimeOfDay:   model.Ptr(TimeOfDay(local, sunrise, sunset)),
			Season:      model.Ptr(SeasonFor(local)),
			SpawnPhase:  model.Ptr(SpawnPhaseFor(waterF, local, coords.Lat)),
			Coordinates: &coords,
		},
		ClarityGuess: model.Ptr(GuessClarity(f.Hours, now)),
		WaterTempF:   &waterF,
		PrecipMM:     &precip,
		Sunrise:      sunrise,
		Sunset:       sunset,
		Status:       StatusAutofilled,
	}
}
