package mapty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidInput is returned when the submitted form values fail validation
	ErrInvalidInput = errors.New("inputs have to be positive numbers")
	// ErrNoPendingClick is returned when a workout is submitted before the map was clicked
	ErrNoPendingClick = errors.New("no map location selected")
)

const (
	msgPosition = "Could not get position"
	msgInput    = "Inputs have to be positive numbers!"
	msgStorage  = "Could not save workouts"
	msgReset    = "Could not reset workouts"
)

// Geolocator resolves the current position
type Geolocator interface {
	CurrentPosition(ctx context.Context) (LatLng, error)
}

// MapProvider creates map views
type MapProvider interface {
	NewMap(center LatLng, zoom int) Map
}

// Map is a rendered map instance
type Map interface {
	AddTileLayer(layer TileLayer)
	OnClick(f func(LatLng))
	AddMarker(coords LatLng, popup Popup)
	SetView(center LatLng, zoom int, pan PanOptions)
}

// View is the form and workout list surface
type View interface {
	ShowForm()
	HideForm()
	ToggleElevationField()
	RenderWorkout(w *Workout)
	Clear()
}

// Alerter shows a blocking message to the user
type Alerter interface {
	Alert(msg string)
}

// FormInput holds the raw form field values
type FormInput struct {
	Type      string `json:"type" form:"type"`
	Distance  string `json:"distance" form:"distance"`
	Duration  string `json:"duration" form:"duration"`
	Cadence   string `json:"cadence" form:"cadence"`
	Elevation string `json:"elevation" form:"elevation"`
}

// State of the form with respect to a pending map click
type State int

const (
	StateIdle State = iota
	StateAwaitingInput
)

func (s State) String() string {
	if s == StateAwaitingInput {
		return "awaiting-input"
	}
	return "idle"
}

// Options are the collaborators of an App
type Options struct {
	Config      *Config
	Storage     Storage
	Geolocator  Geolocator
	MapProvider MapProvider
	View        View
	Alerter     Alerter
}

// App coordinates geolocation, the map, the form, the workout list and persistence.
// All handlers run under a single lock, one at a time.
type App struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	gen    int
	closed bool

	config     *Config
	storage    Storage
	geolocator Geolocator
	maps       MapProvider
	view       View
	alerter    Alerter

	m        Map
	click    *LatLng
	workouts []*Workout
}

func NewApp(opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &App{
		config:     cfg,
		storage:    opts.Storage,
		geolocator: opts.Geolocator,
		maps:       opts.MapProvider,
		view:       opts.View,
		alerter:    opts.Alerter,
	}
}

// Start requests the current position and loads persisted workouts. The map is
// initialized only after the load completes.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.start(ctx)
}

// Wait blocks until any in-flight position request has been handled. It must
// not be called concurrently with Start or Reset; use Close for that.
func (a *App) Wait() {
	a.wg.Wait()
}

// Close stops new position requests and waits for the in-flight one
func (a *App) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *App) start(ctx context.Context) {
	a.acquirePosition(ctx)
	a.load(ctx)
}

func (a *App) acquirePosition(ctx context.Context) {
	if a.geolocator == nil {
		log.Warn().Msg("geolocation unavailable")
		return
	}
	if a.closed {
		log.Debug().Msg("closed, skipping position request")
		return
	}
	gen := a.gen
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		pos, err := a.geolocator.CurrentPosition(ctx)
		a.mu.Lock()
		defer a.mu.Unlock()
		if gen != a.gen {
			log.Debug().Msg("discarding position from before reload")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("position")
			a.alert("position", msgPosition)
			return
		}
		a.loadMap(pos)
	}()
}

func (a *App) loadMap(pos LatLng) {
	log.Info().Float64("lat", pos.Lat()).Float64("lng", pos.Lng()).Int("zoom", a.config.ZoomLevel).Msg("map")
	a.m = a.maps.NewMap(pos, a.config.ZoomLevel)
	a.m.AddTileLayer(a.config.TileLayer)
	a.m.OnClick(func(ll LatLng) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.showForm(ll)
	})
	for _, w := range a.workouts {
		a.renderMarker(w)
	}
}

func (a *App) showForm(ll LatLng) {
	a.click = &ll
	a.view.ShowForm()
}

func (a *App) hideForm() {
	a.view.HideForm()
}

// State reports whether a map click is waiting for form input
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.click != nil {
		return StateAwaitingInput
	}
	return StateIdle
}

// CancelForm hides the form and drops the pending click
func (a *App) CancelForm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.click == nil {
		return
	}
	a.click = nil
	a.hideForm()
}

// ToggleElevationField swaps the visible type specific field
func (a *App) ToggleElevationField() {
	a.view.ToggleElevationField()
}

// NewWorkout validates the form input and, if valid, records a workout at the
// pending click location.
func (a *App) NewWorkout(ctx context.Context, in FormInput) (*Workout, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.click == nil {
		a.alert("input", msgInput)
		return nil, ErrNoPendingClick
	}

	distance := number(in.Distance)
	duration := number(in.Duration)

	var w *Workout
	switch Type(in.Type) {
	case TypeRunning:
		cadence := number(in.Cadence)
		if !finite(distance, duration, cadence) || !positive(distance, duration, cadence) {
			a.alert("input", msgInput)
			return nil, ErrInvalidInput
		}
		w = NewRunning(*a.click, distance, duration, cadence)
	case TypeCycling:
		// elevation gain may be zero or negative
		elevation := number(in.Elevation)
		if !finite(distance, duration, elevation) || !positive(distance, duration) {
			a.alert("input", msgInput)
			return nil, ErrInvalidInput
		}
		w = NewCycling(*a.click, distance, duration, elevation)
	default:
		a.alert("input", msgInput)
		return nil, fmt.Errorf("unknown workout type %q: %w", in.Type, ErrInvalidInput)
	}

	a.workouts = append(a.workouts, w)
	a.renderMarker(w)
	a.view.RenderWorkout(w)
	a.click = nil
	a.hideForm()
	recordWorkout(w, len(a.workouts))
	log.Info().Str("id", w.ID).Str("type", string(w.Type)).Str("description", w.Description).Msg("workout")

	if err := a.persist(ctx); err != nil {
		log.Error().Err(err).Msg("persist")
		a.alert("storage", msgStorage)
		return w, err
	}
	return w, nil
}

func (a *App) renderMarker(w *Workout) {
	if a.m == nil {
		return
	}
	a.m.AddMarker(w.Coords, NewPopup(w))
}

// MoveToWorkout re-centers the map on the workout with the given id
func (a *App) MoveToWorkout(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.m == nil {
		return false
	}
	for _, w := range a.workouts {
		if w.ID == id {
			a.m.SetView(w.Coords, a.config.ZoomLevel, PanOptions{Animate: true, Duration: a.config.PanDuration()})
			return true
		}
	}
	return false
}

// Workouts returns a copy of the current workout list
func (a *App) Workouts() []*Workout {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := make([]*Workout, len(a.workouts))
	copy(res, a.workouts)
	return res
}

func (a *App) persist(ctx context.Context) error {
	data, err := json.Marshal(a.workouts)
	if err != nil {
		return err
	}
	return a.storage.Set(ctx, a.config.StorageKey, data)
}

func (a *App) load(ctx context.Context) {
	workouts, err := LoadWorkouts(ctx, a.storage, a.config.StorageKey)
	if err != nil {
		log.Debug().Err(err).Msg("load")
		return
	}
	if len(workouts) == 0 {
		return
	}
	a.workouts = workouts
	for _, w := range a.workouts {
		a.view.RenderWorkout(w)
	}
	workoutsGauge.Set(float64(len(a.workouts)))
	log.Info().Int("count", len(a.workouts)).Msg("load")
}

// Reset removes the persisted workouts and reloads the application
func (a *App) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.storage.Remove(ctx, a.config.StorageKey); err != nil {
		log.Error().Err(err).Msg("reset")
		a.alert("storage", msgReset)
		return fmt.Errorf("reset: %w", err)
	}
	log.Info().Msg("reset")
	a.gen++
	a.m = nil
	a.click = nil
	a.workouts = nil
	workoutsGauge.Set(0)
	a.view.Clear()
	a.start(ctx)
	return nil
}

func (a *App) alert(reason, msg string) {
	alertsCounter.WithLabelValues(reason).Inc()
	if a.alerter != nil {
		a.alerter.Alert(msg)
	}
}

// LoadWorkouts reads the persisted workouts stored under key. Absent data yields
// an empty list; malformed data yields an error.
func LoadWorkouts(ctx context.Context, storage Storage, key string) ([]*Workout, error) {
	data, err := storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var workouts []*Workout
	if err := json.Unmarshal(data, &workouts); err != nil {
		return nil, err
	}
	res := workouts[:0]
	for _, w := range workouts {
		if w != nil {
			res = append(res, w)
		}
	}
	return res, nil
}

// number converts a form value the way a numeric input does: empty is zero,
// anything unparseable is NaN
func number(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func positive(vals ...float64) bool {
	for _, v := range vals {
		if !(v > 0) {
			return false
		}
	}
	return true
}
