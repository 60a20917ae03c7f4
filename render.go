package mapty

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	xnumber "golang.org/x/text/number"
)

// TileLayer describes the map tiles
type TileLayer struct {
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

// Popup configures a marker popup
type Popup struct {
	MaxWidth     int    `json:"maxWidth"`
	MinWidth     int    `json:"minWidth"`
	AutoClose    bool   `json:"autoClose"`
	CloseOnClick bool   `json:"closeOnClick"`
	ClassName    string `json:"className"`
	Content      string `json:"content"`
}

// PanOptions configures a programmatic re-center
type PanOptions struct {
	Animate  bool          `json:"animate"`
	Duration time.Duration `json:"-"`
}

// Detail is a single icon/value/unit line of a list row
type Detail struct {
	Icon  string
	Value string
	Unit  string
}

// Row is the display block for a workout in the list
type Row struct {
	ID      string
	Type    Type
	Title   string
	Details []Detail
}

var printer = message.NewPrinter(language.English)

// NewPopup builds the popup for a workout marker. Popups stay open so several
// can be shown at once.
func NewPopup(w *Workout) Popup {
	return Popup{
		MaxWidth:     250,
		MinWidth:     100,
		AutoClose:    false,
		CloseOnClick: false,
		ClassName:    fmt.Sprintf("%s-popup", w.Type),
		Content:      fmt.Sprintf("%s %s", w.Type.Icon(), w.Description),
	}
}

// NewRow builds the list row for a workout
func NewRow(w *Workout) Row {
	row := Row{
		ID:    w.ID,
		Type:  w.Type,
		Title: w.Description,
		Details: []Detail{
			{Icon: w.Type.Icon(), Value: plain(w.Distance), Unit: "km"},
			{Icon: "⏱", Value: plain(w.Duration), Unit: "min"},
		},
	}
	switch {
	case w.Type == TypeRunning && w.Running != nil:
		row.Details = append(row.Details,
			Detail{Icon: "⚡️", Value: oneDecimal(w.Running.Pace), Unit: "min/km"},
			Detail{Icon: "🦶🏼", Value: plain(w.Running.Cadence), Unit: "spm"})
	case w.Type == TypeCycling && w.Cycling != nil:
		row.Details = append(row.Details,
			Detail{Icon: "⚡️", Value: oneDecimal(w.Cycling.Speed), Unit: "km/h"},
			Detail{Icon: "⛰", Value: plain(w.Cycling.ElevationGain), Unit: "m"})
	}
	return row
}

func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func oneDecimal(v float64) string {
	return printer.Sprint(xnumber.Decimal(v, xnumber.Scale(1), xnumber.NoSeparator()))
}
