// Package fscache - Datei-Hilfen und Metadaten-Cache
//
// Dieses Modul enthaelt:
// - SortKey/NaturalSortKey: Sortierschluessel mit numerischen Teilen ("img2" < "img10")
// - NaturalLess/SortNatural: Vergleich und Sortierung von Namen
package fscache

import (
	"slices"
	"strings"
)

// SortKey besteht abwechselnd aus Text (gerade Indizes, kleingeschrieben)
// und Ziffernfolgen (ungerade Indizes)
type SortKey []string

// NaturalSortKey zerlegt s in Text- und Ziffernteile
func NaturalSortKey(s string) SortKey {
	key := SortKey{}
	start, digits := 0, false
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) == digits {
			continue
		}
		key = append(key, chunk(s[start:i], digits))
		start, digits = i, !digits
	}
	key = append(key, chunk(s[start:], digits))

	// ein Schluessel endet immer mit Text, wie beim Aufteilen an Ziffern
	if digits {
		key = append(key, "")
	}
	return key
}

// Compare vergleicht zwei Schluessel teilweise; Ziffernfolgen nach Zahlenwert
func (k SortKey) Compare(o SortKey) int {
	for i := range min(len(k), len(o)) {
		var c int
		if i%2 == 1 {
			c = compareDigits(k[i], o[i])
		} else {
			c = strings.Compare(k[i], o[i])
		}
		if c != 0 {
			return c
		}
	}
	return len(k) - len(o)
}

// NaturalLess meldet, ob a natuerlich sortiert vor b liegt
func NaturalLess(a, b string) bool {
	return NaturalSortKey(a).Compare(NaturalSortKey(b)) < 0
}

// SortNatural sortiert names stabil in natuerlicher Reihenfolge
func SortNatural(names []string) {
	slices.SortStableFunc(names, func(a, b string) int {
		return NaturalSortKey(a).Compare(NaturalSortKey(b))
	})
}

func chunk(s string, digits bool) string {
	if digits {
		return s
	}
	return strings.ToLower(s)
}

// compareDigits vergleicht Ziffernfolgen beliebiger Laenge nach Zahlenwert
func compareDigits(a, b string) int {
	a, b = strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
