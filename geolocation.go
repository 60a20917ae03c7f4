package mapty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrPositionUnavailable is returned when no position could be determined
var ErrPositionUnavailable = errors.New("position unavailable")

// StaticGeolocator always reports the same position
type StaticGeolocator struct {
	Position LatLng
}

func (g *StaticGeolocator) CurrentPosition(_ context.Context) (LatLng, error) {
	return g.Position, nil
}

// IPGeolocator resolves the position of the host's public address using an
// ip-api.com compatible endpoint
type IPGeolocator struct {
	URL    string
	Client *http.Client
}

const defaultGeolocationURL = "http://ip-api.com/json/?fields=status,message,lat,lon"

func NewIPGeolocator(u string) *IPGeolocator {
	if u == "" {
		u = defaultGeolocationURL
	}
	return &IPGeolocator{URL: u, Client: &http.Client{Timeout: 10 * time.Second}}
}

type ipLocation struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (g *IPGeolocator) CurrentPosition(ctx context.Context) (LatLng, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL, nil)
	if err != nil {
		return LatLng{}, err
	}
	res, err := g.Client.Do(req)
	if err != nil {
		return LatLng{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return LatLng{}, fmt.Errorf("%w: status %d", ErrPositionUnavailable, res.StatusCode)
	}
	var loc ipLocation
	if err := json.NewDecoder(res.Body).Decode(&loc); err != nil {
		return LatLng{}, err
	}
	if loc.Status != "success" {
		return LatLng{}, fmt.Errorf("%w: %s", ErrPositionUnavailable, loc.Message)
	}
	return LatLng{loc.Lat, loc.Lon}, nil
}
