package conditions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/pkg/weather"
)

type fakeLocator struct {
	coords *model.Coordinates
	err    error
}

func (f fakeLocator) Locate(context.Context) (*model.Coordinates, error) {
	return f.coords, f.err
}

type fakeWeather struct {
	forecast *weather.Forecast
	err      error
	calls    int
}

func (f *fakeWeather) Forecast(context.Context, float64, float64) (*weather.Forecast, error) {
	f.calls++
	return f.forecast, f.err
}

func springForecast(now time.Time) *weather.Forecast {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	sunrise, sunset := day.Add(6*time.Hour), day.Add(20*time.Hour)

	hours := hourly(now.Add(-48*time.Hour), 49)
	for i := range hours {
		hours[i].TemperatureC = model.Ptr(22.0) // 71.6F -> 66.6F water
		hours[i].PrecipitationMM = model.Ptr(0.0)
	}
	return &weather.Forecast{
		Location: time.UTC,
		Hours:    hours,
		Days:     []weather.Day{{Date: day, Sunrise: &sunrise, Sunset: &sunset}},
	}
}

func newTestNormalizer(w weather.Client, loc Locator, now time.Time) *Normalizer {
	n := NewNormalizer(w, loc)
	n.nowFunc = func() time.Time { return now }
	return n
}

func TestResolve_Success(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	w := &fakeWeather{forecast: springForecast(now)}
	coords := &model.Coordinates{Lat: 35, Lon: -92}

	snap := newTestNormalizer(w, fakeLocator{coords: coords}, now).Resolve(context.Background())

	assert.Equal(t, StatusAutofilled, snap.Status)
	assert.Equal(t, model.TimeMidday, *snap.Conditions.TimeOfDay)
	assert.Equal(t, model.SeasonSpring, *snap.Conditions.Season)
	assert.Equal(t, model.SpawnOn, *snap.Conditions.SpawnPhase)
	assert.Equal(t, coords, snap.Conditions.Coordinates)
	assert.Nil(t, snap.Conditions.Clarity)
	assert.Nil(t, snap.Conditions.Cover)
	require.NotNil(t, snap.ClarityGuess)
	assert.Equal(t, model.ClarityClear, *snap.ClarityGuess)
	require.NotNil(t, snap.WaterTempF)
	assert.InDelta(t, 66.6, *snap.WaterTempF, 1e-9)
	assert.NotNil(t, snap.Sunrise)
	assert.Equal(t, 1, w.calls)
}

func TestResolve_NoLocator(t *testing.T) {
	now := time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)
	w := &fakeWeather{}

	snap := newTestNormalizer(w, nil, now).Resolve(context.Background())

	assert.Equal(t, StatusNoLocation, snap.Status)
	assert.Equal(t, model.TimeMorning, *snap.Conditions.TimeOfDay)
	assert.Equal(t, model.SeasonWinter, *snap.Conditions.Season)
	assert.Equal(t, model.SpawnNone, *snap.Conditions.SpawnPhase)
	assert.Nil(t, snap.ClarityGuess)
	assert.Equal(t, 0, w.calls)
}

func TestResolve_LocatorError(t *testing.T) {
	now := time.Date(2026, 7, 5, 22, 0, 0, 0, time.UTC)
	snap := newTestNormalizer(&fakeWeather{}, fakeLocator{err: errors.New("denied")}, now).
		Resolve(context.Background())

	assert.Equal(t, StatusNoLocation, snap.Status)
	assert.Equal(t, model.TimeNight, *snap.Conditions.TimeOfDay)
}

func TestResolve_WeatherFailure(t *testing.T) {
	now := time.Date(2026, 4, 20, 13, 0, 0, 0, time.UTC)
	coords := &model.Coordinates{Lat: 33, Lon: -90}
	w := &fakeWeather{err: errors.New("503")}

	snap := newTestNormalizer(w, fakeLocator{coords: coords}, now).Resolve(context.Background())

	assert.Equal(t, StatusWeatherFailure, snap.Status)
	assert.Equal(t, model.TimeMidday, *snap.Conditions.TimeOfDay)
	assert.Equal(t, model.SeasonSpring, *snap.Conditions.Season)
	assert.Equal(t, model.SpawnNone, *snap.Conditions.SpawnPhase)
	assert.Equal(t, coords, snap.Conditions.Coordinates)
	assert.Nil(t, snap.ClarityGuess)
}

func TestFromForecast_UsesForecastZone(t *testing.T) {
	// 02:00 UTC is 21:00 the previous evening at UTC-5.
	zone := time.FixedZone("CDT", -5*3600)
	now := time.Date(2026, 6, 2, 2, 0, 0, 0, time.UTC)
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, zone)
	sunrise, sunset := day.Add(6*time.Hour), day.Add(20*time.Hour+15*time.Minute)
	f := &weather.Forecast{
		Location: zone,
		Days:     []weather.Day{{Date: day, Sunrise: &sunrise, Sunset: &sunset}},
	}

	snap := FromForecast(f, now, model.Coordinates{Lat: 35, Lon: -92})
	assert.Equal(t, model.TimeNight, *snap.Conditions.TimeOfDay)
	assert.Equal(t, model.SeasonSummer, *snap.Conditions.Season)
	assert.InDelta(t, 55.0, *snap.WaterTempF, 1e-9)
}
