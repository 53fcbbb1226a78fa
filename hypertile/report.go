// report.go - Fehlermeldungen pro Job
//
// Kachel-Fehler werden pro Forward-Aufruf behoben, sollen aber nicht bei
// jedem Aufruf im Log landen. Der Reporter wird dem Job explizit mitgegeben.
package hypertile

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/emirpasic/gods/v2/sets/hashset"
)

// Reporter nimmt behobene Fehler aus dem Kachel-Pfad entgegen
type Reporter interface {
	// Report meldet err; args sind slog-Attribute
	Report(err error, args ...any)

	// Reset beginnt einen neuen Meldezeitraum (neuer Scope oder neuer Pass)
	Reset()
}

// OnceReporter loggt jede Fehlerart nur einmal pro Meldezeitraum.
// Die Art ist der Sentinel-Fehler (z.B. ErrPartition), sonst der Fehlertext.
type OnceReporter struct {
	logger *slog.Logger

	mu         sync.Mutex
	seen       *hashset.Set[string]
	suppressed int
}

// NewOnceReporter erzeugt einen OnceReporter; logger nil bedeutet slog.Default()
func NewOnceReporter(logger *slog.Logger) *OnceReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnceReporter{logger: logger, seen: hashset.New[string]()}
}

// Report loggt err, sofern seine Art in diesem Zeitraum noch nicht gemeldet wurde
func (r *OnceReporter) Report(err error, args ...any) {
	kind := kindOf(err)

	r.mu.Lock()
	if r.seen.Contains(kind) {
		r.suppressed++
		r.mu.Unlock()
		return
	}
	r.seen.Add(kind)
	r.mu.Unlock()

	r.logger.Error("hypertile error", append(args, "error", err)...)
}

// Reset vergisst alle bisher gemeldeten Arten
func (r *OnceReporter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen.Clear()
	r.suppressed = 0
}

// Suppressed gibt die Anzahl unterdrueckter Meldungen seit dem letzten Reset zurueck
func (r *OnceReporter) Suppressed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suppressed
}

func kindOf(err error) string {
	if errors.Is(err, ErrPartition) {
		return ErrPartition.Error()
	}
	return err.Error()
}
