// tiles.go - Auswahl der Kachel-Anzahl pro Dimension
//
// Dieses Modul enthaelt:
// - PossibleTileSizes: Teiler einer Dimension, deren Kachelkante ein
//   Vielfaches von 8 ist, sortiert nach Abstand zur Ziel-Kachelgroesse
// - FormatCandidates: Log-Darstellung einer Kandidatenliste
package hypertile

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// stride ist die Schrittweite der Basis-Faltung; Kachelkanten muessen Vielfache davon sein
const stride = 8

// PossibleTileSizes gibt bis zu tileOptions Kachel-Anzahlen n fuer dimension zurueck.
// Jedes n teilt dimension, dimension/n ist ein Vielfaches von 8 und mindestens
// min(minTileSize, tileSize, dimension). Sortiert wird nach |dimension/n - tileSize|,
// bei Gleichstand nach n aufsteigend.
func PossibleTileSizes(dimension, tileSize, minTileSize, tileOptions int) ([]int, error) {
	if tileOptions < 1 {
		return nil, fmt.Errorf("%w: tile options must be at least 1, got %d", ErrConfiguration, tileOptions)
	}

	minTileSize = min(minTileSize, tileSize, dimension)

	var ns []int
	for n := 1; n <= dimension; n++ {
		if dimension%n != 0 {
			continue
		}
		edge := dimension / n
		if edge%stride != 0 || edge < minTileSize {
			continue
		}
		ns = append(ns, n)
	}

	// stabil, damit bei gleichem Abstand die kleinere Anzahl vorne bleibt
	slices.SortStableFunc(ns, func(a, b int) int {
		return cmp.Compare(distance(dimension/a, tileSize), distance(dimension/b, tileSize))
	})

	if len(ns) > tileOptions {
		ns = ns[:tileOptions]
	}
	return ns, nil
}

// candidates ist PossibleTileSizes mit garantiertem Rueckfall auf [1] (keine Aufteilung)
func candidates(dimension, tileSize, minTileSize, tileOptions int) ([]int, error) {
	ns, err := PossibleTileSizes(dimension, tileSize, minTileSize, tileOptions)
	if err != nil {
		return nil, err
	}
	if len(ns) == 0 {
		return []int{1}, nil
	}
	return ns, nil
}

// FormatCandidates formatiert Kandidaten fuer Logs: ein einzelner Wert ohne Klammern
func FormatCandidates(ns []int) string {
	if len(ns) == 1 {
		return strconv.Itoa(ns[0])
	}

	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
