// config.go - Haupt-Konfigurationsfunktionen fuer hypertile
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (HYPERTILE_DEBUG)
// - OptionsFile: Pfad der YAML-Optionsdatei (HYPERTILE_OPTIONS)
// - LoadDotEnv: Laedt .env-Dateien in die Umgebung
// - Var: Liest eine Environment-Variable
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Kachel-Einstellungen und Datei-Optionen
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via HYPERTILE_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("HYPERTILE_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// OptionsFile gibt den Pfad der YAML-Optionsdatei zurueck
// Konfigurierbar via HYPERTILE_OPTIONS
// Default: $HOME/.hypertile/options.yaml
func OptionsFile() string {
	if s := Var("HYPERTILE_OPTIONS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".hypertile", "options.yaml")
}

// LoadDotEnv laedt die angegebenen .env-Dateien (Default: ./.env).
// Bereits gesetzte Variablen werden nicht ueberschrieben, fehlende Dateien ignoriert.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("env file not found, skipping", "path", p)
				continue
			}
			return err
		}
	}
	return nil
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
