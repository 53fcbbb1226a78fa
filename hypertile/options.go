// options.go - Host-Optionen fuer die Kachelung
//
// Dieses Modul enthaelt:
// - Options: alle Einstellungen, benannt wie die Host-Optionen
// - DefaultOptions/OptionsFromEnv/LoadOptions: Quellen der Einstellungen
// - Lookup: Zugriff ueber den Optionsnamen
package hypertile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/7blacky7/hypertile/envconfig"
)

// Options sind die Einstellungen, die der Host pro Generierung liest
type Options struct {
	VAEEnabled  bool `yaml:"hypertile_vae_enabled"`
	UNetEnabled bool `yaml:"hypertile_unet_enabled"`
	VAETile     int  `yaml:"hypertile_vae_tile"`
	UNetTile    int  `yaml:"hypertile_unet_tile"`
	MinTile     int  `yaml:"hypertile_min_tile"`
	SwapSize    int  `yaml:"hypertile_swap_size"`
	Depth       int  `yaml:"hypertile_depth"`

	// Seed 0 bedeutet zufaellige Raster
	Seed uint64 `yaml:"hypertile_seed"`
}

// DefaultOptions gibt die Standardwerte zurueck (beide Stufen deaktiviert)
func DefaultOptions() Options {
	return Options{
		VAETile:  128,
		UNetTile: 256,
		MinTile:  128,
		SwapSize: 1,
		Depth:    0,
	}
}

// OptionsFromEnv ueberschreibt o mit gesetzten HYPERTILE_* Variablen
func OptionsFromEnv(o Options) Options {
	o.VAEEnabled = envconfig.VAEEnabled(o.VAEEnabled)
	o.UNetEnabled = envconfig.UNetEnabled(o.UNetEnabled)
	o.VAETile = int(envconfig.VAETile(uint(o.VAETile)))
	o.UNetTile = int(envconfig.UNetTile(uint(o.UNetTile)))
	o.MinTile = int(envconfig.MinTile(uint(o.MinTile)))
	o.SwapSize = int(envconfig.SwapSize(uint(o.SwapSize)))
	o.Depth = int(envconfig.Depth(uint(o.Depth)))
	o.Seed = envconfig.Seed(o.Seed)
	return o
}

// LoadOptions liest eine YAML-Datei ueber die Standardwerte.
// Eine fehlende Datei ist kein Fehler.
func LoadOptions(path string) (Options, error) {
	o := DefaultOptions()
	if path == "" {
		return o, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return o, nil
	} else if err != nil {
		return o, err
	}

	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("parse %s: %w", path, err)
	}
	return o, o.Validate()
}

// Validate prueft die Optionen auf Programmierfehler
func (o Options) Validate() error {
	switch {
	case o.SwapSize < 1:
		return fmt.Errorf("%w: hypertile_swap_size must be at least 1, got %d", ErrConfiguration, o.SwapSize)
	case o.VAETile < stride || o.UNetTile < stride:
		return fmt.Errorf("%w: tile sizes must be at least %d", ErrConfiguration, stride)
	case o.MinTile < 1:
		return fmt.Errorf("%w: hypertile_min_tile must be positive, got %d", ErrConfiguration, o.MinTile)
	case o.Depth < 0:
		return fmt.Errorf("%w: hypertile_depth must not be negative, got %d", ErrConfiguration, o.Depth)
	}
	return nil
}

// Lookup gibt eine Option ueber ihren Host-Namen zurueck
func (o Options) Lookup(name string) (any, bool) {
	switch name {
	case "hypertile_vae_enabled":
		return o.VAEEnabled, true
	case "hypertile_unet_enabled":
		return o.UNetEnabled, true
	case "hypertile_vae_tile":
		return o.VAETile, true
	case "hypertile_unet_tile":
		return o.UNetTile, true
	case "hypertile_min_tile":
		return o.MinTile, true
	case "hypertile_swap_size":
		return o.SwapSize, true
	case "hypertile_depth":
		return o.Depth, true
	case "hypertile_seed":
		return o.Seed, true
	}
	return nil, false
}

// tileOptions baut die Scope-Optionen fuer eine Ziel-Kachelgroesse
func (o Options) tileOptions(tile int) TileOptions {
	return TileOptions{
		TileSize:    tile,
		MinTileSize: o.MinTile,
		SwapSize:    o.SwapSize,
		Depth:       o.Depth,
	}
}
