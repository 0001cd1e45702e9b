package weather

import (
	"time"

	"github.com/rotisserie/eris"
)

// Open-Meteo local timestamps carry no zone; utc_offset_seconds supplies it.
const (
	hourLayout = "2006-01-02T15:04"
	dayLayout  = "2006-01-02"
)

type forecastResponse struct {
	Timezone         string `json:"timezone"`
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	Hourly           struct {
		Time          []string   `json:"time"`
		Precipitation []*float64 `json:"precipitation"`
		Temperature   []*float64 `json:"temperature_2m"`
	} `json:"hourly"`
	Daily struct {
		Time    []string `json:"time"`
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// Hour is one hourly sample. Missing values are nil.
type Hour struct {
	Time            time.Time
	PrecipitationMM *float64
	TemperatureC    *float64
}

// Day holds sun times for one local calendar day.
type Day struct {
	Date    time.Time
	Sunrise *time.Time
	Sunset  *time.Time
}

// Forecast is a parsed response, ordered by time.
type Forecast struct {
	Location *time.Location
	Hours    []Hour
	Days     []Day
}

func (r *forecastResponse) toForecast() (*Forecast, error) {
	loc := time.FixedZone(r.Timezone, r.UTCOffsetSeconds)
	f := &Forecast{Location: loc}

	for i, raw := range r.Hourly.Time {
		t, err := time.ParseInLocation(hourLayout, raw, loc)
		if err != nil {
			return nil, eris.Wrapf(err, "weather: parse hourly time %q", raw)
		}
		h := Hour{Time: t}
		if i < len(r.Hourly.Precipitation) {
			h.PrecipitationMM = r.Hourly.Precipitation[i]
		}
		if i < len(r.Hourly.Temperature) {
			h.TemperatureC = r.Hourly.Temperature[i]
		}
		f.Hours = append(f.Hours, h)
	}

	for i, raw := range r.Daily.Time {
		d, err := time.ParseInLocation(dayLayout, raw, loc)
		if err != nil {
			return nil, eris.Wrapf(err, "weather: parse daily date %q", raw)
		}
		day := Day{Date: d}
		if i < len(r.Daily.Sunrise) {
			day.Sunrise = parseOptional(r.Daily.Sunrise[i], loc)
		}
		if i < len(r.Daily.Sunset) {
			day.Sunset = parseOptional(r.Daily.Sunset[i], loc)
		}
		f.Days = append(f.Days, day)
	}
	return f, nil
}

func parseOptional(raw string, loc *time.Location) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.ParseInLocation(hourLayout, raw, loc)
	if err != nil {
		return nil
	}
	return &t
}

// SunTimes returns sunrise and sunset for the local day containing now.
// Either may be nil when the forecast does not cover that day.
func (f *Forecast) SunTimes(now time.Time) (sunrise, sunset *time.Time) {
	local := now.In(f.Location)
	y, m, d := local.Date()
	for _, day := range f.Days {
		dy, dm, dd := day.Date.Date()
		if dy == y && dm == m && dd == d {
			return day.Sunrise, day.Sunset
		}
	}
	return nil, nil
}

// Local converts t to the forecast's zone.
func (f *Forecast) Local(t time.Time) time.Time {
	return t.In(f.Location)
}
