package mapty

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Type discriminates the workout variants
type Type string

const (
	TypeRunning Type = "running"
	TypeCycling Type = "cycling"
)

// now is swapped in tests
var now = time.Now

// LatLng is a [latitude, longitude] pair
type LatLng [2]float64

func (l LatLng) Lat() float64 { return l[0] }
func (l LatLng) Lng() float64 { return l[1] }

// Running holds the running specific fields
type Running struct {
	Cadence float64 `json:"cadence"`
	Pace    float64 `json:"pace"`
}

// Cycling holds the cycling specific fields
type Cycling struct {
	ElevationGain float64 `json:"elevationGain"`
	Speed         float64 `json:"speed"`
}

// Workout is a single logged activity. Exactly one of Running or Cycling is
// set, matching Type.
type Workout struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Coords      LatLng    `json:"coords"`
	Distance    float64   `json:"distance"`
	Duration    float64   `json:"duration"`
	Description string    `json:"description"`
	Type        Type      `json:"type"`

	*Running
	*Cycling
}

// NewRunning creates a running workout; the caller is expected to have validated the inputs
func NewRunning(coords LatLng, distance, duration, cadence float64) *Workout {
	w := newWorkout(TypeRunning, coords, distance, duration)
	w.Running = &Running{Cadence: cadence, Pace: derive(TypeRunning, distance, duration)}
	return w
}

// NewCycling creates a cycling workout; the caller is expected to have validated the inputs
func NewCycling(coords LatLng, distance, duration, elevationGain float64) *Workout {
	w := newWorkout(TypeCycling, coords, distance, duration)
	w.Cycling = &Cycling{ElevationGain: elevationGain, Speed: derive(TypeCycling, distance, duration)}
	return w
}

func newWorkout(t Type, coords LatLng, distance, duration float64) *Workout {
	date := now()
	return &Workout{
		ID:          id(date),
		Date:        date,
		Coords:      coords,
		Distance:    distance,
		Duration:    duration,
		Type:        t,
		Description: description(t, date),
	}
}

// Metric returns the derived metric: pace for running, speed for cycling
func (w *Workout) Metric() float64 {
	switch {
	case w.Running != nil:
		return w.Running.Pace
	case w.Cycling != nil:
		return w.Cycling.Speed
	}
	return 0
}

// derive computes pace (min/km) for running and speed (km/h) for cycling
func derive(t Type, distance, duration float64) float64 {
	switch t {
	case TypeRunning:
		return duration / distance
	case TypeCycling:
		return distance / (duration / 60)
	}
	return 0
}

// id keeps the trailing ten digits of the unix millisecond timestamp
func id(t time.Time) string {
	s := strconv.FormatInt(t.UnixMilli(), 10)
	if len(s) > 10 {
		s = s[len(s)-10:]
	}
	return s
}

func description(t Type, date time.Time) string {
	name := cases.Title(language.English).String(string(t))
	return fmt.Sprintf("%s on %s %d", name, date.Month(), date.Day())
}

// Icon returns the emoji used for the workout type in popups and list rows
func (t Type) Icon() string {
	if t == TypeRunning {
		return "🏃‍♂️"
	}
	return "🚴‍♀️"
}
