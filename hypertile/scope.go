// Package hypertile kachelt Self-Attention in Diffusions-Netzwerken.
//
// Ein Scope installiert fuer die Dauer eines Inferenz-Laufs Interceptoren in
// allen Self-Attention-Modulen eines Netzwerks. Jeder Interceptor teilt seinen
// Eingang in ein zufaelliges Raster aus Kacheln, rechnet die Attention pro
// Kachel und setzt das Ergebnis wieder zusammen. Close entfernt alle
// Interceptoren wieder.
//
// scope.go enthaelt:
// - TileOptions: Ziel-Kachelgroesse, Minimum, Anzahl Kandidaten, Tiefe
// - SplitAttention/WithSplitAttention: Scope oeffnen
// - Targets: Auswahl der abzufangenden Module
package hypertile

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/7blacky7/hypertile/ml/nn"
)

// TileOptions steuern die Kachelung eines Scopes
type TileOptions struct {
	// TileSize ist die angestrebte Kachelkante in Pixeln
	TileSize int

	// MinTileSize ist die kleinste erlaubte Kachelkante in Pixeln
	MinTileSize int

	// SwapSize ist die Anzahl Kandidaten pro Dimension, aus denen gewuerfelt wird
	SwapSize int

	// Depth ist die tiefste Netzwerk-Stufe (log2 des Verkleinerungsfaktors), die gekachelt wird
	Depth int
}

// DefaultTileOptions entspricht den Standardwerten der Kachelung
func DefaultTileOptions() TileOptions {
	return TileOptions{TileSize: 256, MinTileSize: 256, SwapSize: 1, Depth: 0}
}

// Scope haelt die installierten Interceptoren eines Netzwerks
type Scope struct {
	job     *Job
	opts    TileOptions
	patches []patch
	skipped error

	// ar, nhs und nws sind durch job.mu geschuetzt
	ar       float64
	nhs, nws []int

	closeOnce sync.Once
}

// patch merkt sich ein abgefangenes Modul bis zum Close
type patch struct {
	name string
	hook *nn.Hook
}

// NopScope gibt einen Scope zurueck, der nichts abfaengt. reason darf nil sein.
func NopScope(reason error) *Scope {
	return &Scope{skipped: reason}
}

// Targets gibt alle Module unter root zurueck, die gekachelt werden: Attention-Module,
// die keine Cross-Attention sind. Cross-Attention wird am Marker oder am
// Namen (attn2, attn_2) erkannt.
func Targets(root nn.Module) []nn.Named {
	var out []nn.Named
	for _, m := range nn.NamedModules(root) {
		attn, ok := m.Module.(nn.Attention)
		if !ok || attn.IsCrossAttention() {
			continue
		}
		if strings.HasSuffix(m.Name, "attn2") || strings.HasSuffix(m.Name, "attn_2") {
			continue
		}
		out = append(out, m)
	}
	return out
}

// SplitAttention oeffnet einen Scope auf root. Der Aufrufer muss Close aufrufen,
// am besten per defer direkt nach dem Fehler-Check.
func SplitAttention(root nn.Module, job *Job, opts TileOptions) (*Scope, error) {
	height, width := job.Dims()
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: job dimensions %dx%d", ErrConfiguration, width, height)
	}

	s := &Scope{job: job, opts: opts, ar: float64(height) / float64(width)}

	var err error
	if s.nhs, err = candidates(height, opts.TileSize, opts.MinTileSize, opts.SwapSize); err != nil {
		return nil, err
	}
	if s.nws, err = candidates(width, opts.TileSize, opts.MinTileSize, opts.SwapSize); err != nil {
		return nil, err
	}

	// Patch-Liste vollstaendig aufbauen, bevor etwas installiert wird
	targets := Targets(root)
	s.patches = make([]patch, 0, len(targets))
	for _, t := range targets {
		s.patches = append(s.patches, patch{name: t.Name, hook: t.Module.(nn.Attention).AttentionHook()})
	}

	for i, p := range s.patches {
		if err := p.hook.Install(s.intercept(p.name)); err != nil {
			// bereits installierte Hooks zurueckrollen
			for _, done := range s.patches[:i] {
				done.hook.Remove()
			}
			return nil, fmt.Errorf("intercept %q: %w", p.name, err)
		}
	}

	job.reporter.Reset()
	job.logger.Debug("hypertile scope opened",
		"modules", len(s.patches),
		"height", height, "width", width,
		"nh", FormatCandidates(s.nhs), "nw", FormatCandidates(s.nws),
		"depth", opts.Depth)
	return s, nil
}

// WithSplitAttention fuehrt fn innerhalb eines Scopes aus; Close laeuft auf jedem Weg
func WithSplitAttention(root nn.Module, job *Job, opts TileOptions, fn func() error) (err error) {
	s, err := SplitAttention(root, job, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()

	return fn()
}

// Close entfernt alle Interceptoren. Mehrfaches Close ist erlaubt.
func (s *Scope) Close() error {
	s.closeOnce.Do(func() {
		for _, p := range s.patches {
			p.hook.Remove()
		}
		if s.job != nil && len(s.patches) > 0 {
			s.job.logger.Debug("hypertile scope closed", "modules", len(s.patches))
		}
		s.patches = nil
	})
	return nil
}

// Patched gibt die Namen der aktuell abgefangenen Module zurueck
func (s *Scope) Patched() []string {
	names := make([]string, len(s.patches))
	for i, p := range s.patches {
		names[i] = p.name
	}
	return names
}

// Skipped gibt den Grund zurueck, warum der Scope nichts abfaengt (oder nil)
func (s *Scope) Skipped() error {
	return s.skipped
}
