package mapty

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Form is the state of the workout input form
type Form struct {
	Hidden          bool
	Display         string
	Focus           string
	Input           FormInput
	CadenceHidden   bool
	ElevationHidden bool
}

// Marker is a rendered map marker with its popup
type Marker struct {
	Coords LatLng `json:"coords"`
	Popup  Popup  `json:"popup"`
}

// MapState is the rendered map; the browser draws it with Leaflet
type MapState struct {
	Center  LatLng     `json:"center"`
	Zoom    int        `json:"zoom"`
	Tiles   TileLayer  `json:"tiles"`
	Markers []Marker   `json:"markers"`
	Pan     PanOptions `json:"pan"`
	// PanSeconds is the animation length of the most recent re-center
	PanSeconds float64 `json:"panSeconds"`
}

// Snapshot is a consistent copy of the page for rendering
type Snapshot struct {
	Form Form
	Rows []Row
	Map  *MapState
}

// Page is the server side model of the single page: the form, the workout
// list and the map. It implements View, Alerter, MapProvider and Map.
type Page struct {
	mu      sync.RWMutex
	delay   time.Duration
	form    Form
	rows    []Row
	state   *MapState
	onClick func(LatLng)
	alerts  []string
	timer   *time.Timer
}

func NewPage(delay time.Duration) *Page {
	return &Page{delay: delay, form: newForm()}
}

func newForm() Form {
	return Form{
		Hidden:          true,
		Display:         "grid",
		Input:           FormInput{Type: string(TypeRunning)},
		ElevationHidden: true,
	}
}

func (p *Page) ShowForm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.form.Hidden = false
	p.form.Focus = "distance"
}

// HideForm clears and hides the form; it is taken out of the layout until the
// hide transition has finished.
func (p *Page) HideForm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.form.Input.Distance = ""
	p.form.Input.Duration = ""
	p.form.Input.Cadence = ""
	p.form.Input.Elevation = ""
	p.form.Focus = ""
	p.form.Display = "none"
	p.form.Hidden = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.delay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.form.Display = "grid"
	})
}

func (p *Page) ToggleElevationField() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.form.ElevationHidden = !p.form.ElevationHidden
	p.form.CadenceHidden = !p.form.CadenceHidden
}

// Fill copies the browser's current field values into the form and reports
// whether the activity type changed
func (p *Page) Fill(in FormInput) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := in.Type != "" && in.Type != p.form.Input.Type
	if in.Type == "" {
		in.Type = p.form.Input.Type
	}
	p.form.Input = in
	return changed
}

// RenderWorkout places the workout's row directly after the form
func (p *Page) RenderWorkout(w *Workout) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = append([]Row{NewRow(w)}, p.rows...)
}

// Clear discards everything rendered
func (p *Page) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.form = newForm()
	p.rows = nil
	p.state = nil
	p.onClick = nil
}

// Alert queues a message for the next page render
func (p *Page) Alert(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, msg)
}

// Drain returns and clears the queued alerts
func (p *Page) Drain() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	alerts := p.alerts
	p.alerts = nil
	return alerts
}

// Click dispatches a map click. Clicks arriving before the map exists are ignored.
func (p *Page) Click(ll LatLng) bool {
	p.mu.RLock()
	f := p.onClick
	p.mu.RUnlock()
	if f == nil {
		log.Debug().Float64("lat", ll.Lat()).Float64("lng", ll.Lng()).Msg("click ignored, no map")
		return false
	}
	f(ll)
	return true
}

func (p *Page) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := Snapshot{
		Form: p.form,
		Rows: append([]Row(nil), p.rows...),
	}
	if p.state != nil {
		m := *p.state
		m.Markers = append([]Marker(nil), p.state.Markers...)
		snap.Map = &m
	}
	return snap
}

func (p *Page) NewMap(center LatLng, zoom int) Map {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = &MapState{Center: center, Zoom: zoom}
	p.onClick = nil
	return &pageMap{page: p, state: p.state}
}

// pageMap is bound to the MapState it created so a stale handle cannot
// touch a map created after a reload
type pageMap struct {
	page  *Page
	state *MapState
}

func (m *pageMap) AddTileLayer(layer TileLayer) {
	m.page.mu.Lock()
	defer m.page.mu.Unlock()
	m.state.Tiles = layer
}

func (m *pageMap) OnClick(f func(LatLng)) {
	m.page.mu.Lock()
	defer m.page.mu.Unlock()
	if m.page.state == m.state {
		m.page.onClick = f
	}
}

func (m *pageMap) AddMarker(coords LatLng, popup Popup) {
	m.page.mu.Lock()
	defer m.page.mu.Unlock()
	m.state.Markers = append(m.state.Markers, Marker{Coords: coords, Popup: popup})
}

func (m *pageMap) SetView(center LatLng, zoom int, pan PanOptions) {
	m.page.mu.Lock()
	defer m.page.mu.Unlock()
	m.state.Center = center
	m.state.Zoom = zoom
	m.state.Pan = pan
	m.state.PanSeconds = pan.Duration.Seconds()
}
