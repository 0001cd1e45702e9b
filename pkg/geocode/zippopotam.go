package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lureiq/internal/resilience"
)

// zippopotamResponse is the JSON response for /us/<zip>.
type zippopotamResponse struct {
	PostCode string `json:"post code"`
	Places   []struct {
		PlaceName string `json:"place name"`
		State     string `json:"state abbreviation"`
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"places"`
}

func (g *geocoder) lookupZippopotam(ctx context.Context, zip string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/us/"+zip, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return &Result{Zip: zip, Source: "zippopotam", Matched: false}, nil
	}
	if err := resilience.CheckResponse("geocode", resp); err != nil {
		return nil, err
	}

	var body zippopotamResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}
	if len(body.Places) == 0 {
		return &Result{Zip: zip, Source: "zippopotam", Matched: false}, nil
	}

	place := body.Places[0]
	lat, latErr := strconv.ParseFloat(place.Latitude, 64)
	lon, lonErr := strconv.ParseFloat(place.Longitude, 64)
	if latErr != nil || lonErr != nil {
		return nil, eris.Errorf("geocode: bad coordinates %q,%q for %s", place.Latitude, place.Longitude, zip)
	}

	return &Result{
		Zip:       zip,
		Latitude:  lat,
		Longitude: lon,
		Place:     place.PlaceName,
		State:     place.State,
		Source:    "zippopotam",
		Matched:   true,
	}, nil
}
