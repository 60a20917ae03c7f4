package mapty

import (
	"embed"
	"encoding/json"
	"io"
	"time"
)

//go:embed etc templates
var Content embed.FS

// Config holds the tunables of the map and form
type Config struct {
	ZoomLevel         int       `json:"zoomLevel"`
	StorageKey        string    `json:"storageKey"`
	FormDelayMillis   int       `json:"formDelayMillis"`
	PanDurationMillis int       `json:"panDurationMillis"`
	TileLayer         TileLayer `json:"tileLayer"`
}

// FormDelay is how long the form stays out of the layout after being hidden
func (c *Config) FormDelay() time.Duration {
	return time.Duration(c.FormDelayMillis) * time.Millisecond
}

func (c *Config) PanDuration() time.Duration {
	return time.Duration(c.PanDurationMillis) * time.Millisecond
}

// DefaultConfig returns the embedded configuration
func DefaultConfig() *Config {
	fp, err := Content.Open("etc/mapty.json")
	if err != nil {
		panic(err)
	}
	defer fp.Close()
	cfg, err := ReadConfig(fp)
	if err != nil {
		panic(err)
	}
	return cfg
}

// ReadConfig decodes a configuration, filling unset values from the defaults
func ReadConfig(r io.Reader) (*Config, error) {
	val, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := Config{
		ZoomLevel:         13,
		StorageKey:        "workouts",
		FormDelayMillis:   1000,
		PanDurationMillis: 1000,
	}
	if err := json.Unmarshal(val, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
