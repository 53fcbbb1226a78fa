// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - String: String-Getter
// - Uint/UintWithDefault/Uint64WithDefault: Integer-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen in fester Reihenfolge zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// =============================================================================
// Boolean-Getter
// =============================================================================

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// =============================================================================
// String-Getter
// =============================================================================

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// =============================================================================
// Integer-Getter
// =============================================================================

// UintWithDefault gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func UintWithDefault(key string) func(defaultValue uint) uint {
	return func(defaultValue uint) uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// Uint gibt eine Funktion zurueck, die einen uint mit festem Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	withDefault := UintWithDefault(key)
	return func() uint {
		return withDefault(defaultValue)
	}
}

// Uint64WithDefault gibt eine Funktion zurueck, die einen uint64 mit Default-Wert liest
func Uint64WithDefault(key string) func(defaultValue uint64) uint64 {
	return func(defaultValue uint64) uint64 {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return n
			}
		}
		return defaultValue
	}
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen in Dokumentations-Reihenfolge zurueck.
// Kachel-Werte ohne gesetzte Variable erscheinen mit ihrem Host-Default.
func AsMap() *orderedmap.OrderedMap[string, EnvVar] {
	m := orderedmap.New[string, EnvVar]()
	for _, v := range []EnvVar{
		{"HYPERTILE_DEBUG", LogLevel(), "Show additional debug information (e.g. HYPERTILE_DEBUG=1, 2 for trace)"},
		{"HYPERTILE_OPTIONS", OptionsFile(), "Path of the YAML options file"},
		{"HYPERTILE_VAE_ENABLED", VAEEnabled(false), "Tile self-attention in the VAE"},
		{"HYPERTILE_UNET_ENABLED", UNetEnabled(false), "Tile self-attention in the UNet"},
		{"HYPERTILE_VAE_TILE", VAETile(128), "Target VAE tile size in pixels (default 128)"},
		{"HYPERTILE_UNET_TILE", UNetTile(256), "Target UNet tile size in pixels (default 256)"},
		{"HYPERTILE_MIN_TILE", MinTile(128), "Minimum tile size in pixels (default 128)"},
		{"HYPERTILE_SWAP_SIZE", SwapSize(1), "Number of tile grid candidates per dimension (default 1)"},
		{"HYPERTILE_DEPTH", Depth(0), "Deepest UNet stage that is tiled (default 0)"},
		{"HYPERTILE_SEED", Seed(0), "Seed for tile grid selection, 0 for random"},
		{"HYPERTILE_LIST_HIDDEN_FILES", ListHiddenFiles(), "Include hidden directories when walking files"},
		{"HYPERTILE_PRELOAD_CONCURRENCY", PreloadConcurrency(), "Parallel directory scans when preloading the file cache (default 4)"},
	} {
		m.Set(v.Name, v)
	}
	return m
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for pair := AsMap().Oldest(); pair != nil; pair = pair.Next() {
		vals[pair.Key] = fmt.Sprintf("%v", pair.Value.Value)
	}
	return vals
}
