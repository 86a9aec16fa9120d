// Package config loads the PoE port map: which controller drives the ports and
// which pin each port number is wired to.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sweeney/poe-sio/internal/dio"
)

// Config is the contents of a port map file.
type Config struct {
	// Controller is one of dio.Kinds(). Empty means dio.KindIte8783.
	Controller string `json:"controller"`

	// Chip names the gpiochip for the gpiocdev controller.
	Chip string `json:"chip,omitempty"`

	Ports []Port `json:"ports"`
}

// Port maps a PoE port number onto a pin.
type Port struct {
	Port    int   `json:"port"`
	Offset  uint8 `json:"offset"`
	Bitmask uint8 `json:"bitmask"`
	Input   bool  `json:"input"`
	Output  bool  `json:"output"`
	Invert  bool  `json:"invert"`
	PullUp  bool  `json:"pullup,omitempty"`
}

// PinInfo returns the pin descriptor for p.
func (p Port) PinInfo() dio.PinInfo {
	return dio.PinInfo{
		Offset:         p.Offset,
		Bitmask:        p.Bitmask,
		SupportsInput:  p.Input,
		SupportsOutput: p.Output,
		Invert:         p.Invert,
	}
}

// Load reads and validates the port map at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a port map. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Controller == "" {
		cfg.Controller = dio.KindIte8783
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the controller kind and that every port is usable.
func (c *Config) Validate() error {
	known := false
	for _, k := range dio.Kinds() {
		if c.Controller == k {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown controller %q", c.Controller)
	}
	if c.Controller == dio.KindCdev && c.Chip == "" {
		return errors.New("gpiocdev controller needs \"chip\"")
	}
	if len(c.Ports) == 0 {
		return errors.New("no ports configured")
	}

	seen := make(map[int]bool)
	for i, p := range c.Ports {
		if seen[p.Port] {
			return fmt.Errorf("ports[%d]: duplicate port %d", i, p.Port)
		}
		seen[p.Port] = true
		if p.Port < 0 {
			return fmt.Errorf("ports[%d]: negative port %d", i, p.Port)
		}
		if c.Controller != dio.KindCdev {
			if p.Bitmask == 0 {
				return fmt.Errorf("ports[%d]: bitmask must not be zero", i)
			}
			if p.Offset > dio.MaxOffsetIte8783 {
				return fmt.Errorf("ports[%d]: offset %d out of range 0-%d", i, p.Offset, dio.MaxOffsetIte8783)
			}
		}
		if !p.Input && !p.Output {
			return fmt.Errorf("ports[%d]: port %d supports neither input nor output", i, p.Port)
		}
	}
	return nil
}
