// lister.go - Metadaten-Cache fuer Dateien
//
// Ein Lister beantwortet Existenz- und Zeitstempel-Anfragen mit einem
// einzigen Verzeichnis-Scan pro Verzeichnis statt einem stat-Aufruf pro
// Datei. Die Suche ist zuerst exakt und dann ohne Beachtung der
// Gross-/Kleinschreibung; ein Treffer der zweiten Art wird per lstat
// bestaetigt.
package fscache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/7blacky7/hypertile/envconfig"
)

// Entry sind die gecachten Metadaten einer Datei
type Entry struct {
	Name       string
	ModTime    time.Time
	ChangeTime time.Time
}

// cachedDir haelt die Eintraege eines Verzeichnisses
type cachedDir struct {
	cased  map[string]Entry
	folded map[string]Entry
}

// Lister cacht Datei-Metadaten pro Verzeichnis. Der Nullwert ist nicht
// verwendbar; NewLister benutzen.
type Lister struct {
	logger *slog.Logger

	mu   sync.RWMutex
	dirs map[string]*cachedDir
}

// NewLister erzeugt einen leeren Cache; logger nil bedeutet slog.Default()
func NewLister(logger *slog.Logger) *Lister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lister{logger: logger, dirs: make(map[string]*cachedDir)}
}

// Find gibt die Metadaten der Datei unter path zurueck
func (l *Lister) Find(path string) (Entry, bool) {
	dir, name := filepath.Split(path)
	dir = filepath.Clean(dir)

	d, err := l.dir(dir)
	if err != nil {
		l.logger.Debug("scan failed", "dir", dir, "error", err)
		return Entry{}, false
	}

	l.mu.RLock()
	e, cased := d.cased[name]
	_, folded := d.folded[strings.ToLower(name)]
	l.mu.RUnlock()

	if cased {
		return e, true
	}
	if !folded {
		return Entry{}, false
	}

	// das Dateisystem entscheidet, ob die abweichende Schreibweise gilt
	mtime, ctime, err := statTimes(path, false)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Name: name, ModTime: mtime, ChangeTime: ctime}, true
}

// Exists meldet, ob unter path eine Datei liegt
func (l *Lister) Exists(path string) bool {
	_, ok := l.Find(path)
	return ok
}

// MCTime gibt mtime und ctime zurueck, oder Nullwerte, wenn die Datei fehlt
func (l *Lister) MCTime(path string) (mtime, ctime time.Time) {
	e, ok := l.Find(path)
	if !ok {
		return time.Time{}, time.Time{}
	}
	return e.ModTime, e.ChangeTime
}

// Reset vergisst alle Verzeichnisse
func (l *Lister) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.dirs)
}

// UpdateFileEntry liest die Datei unter path neu ein, falls ihr Verzeichnis
// bereits gecacht ist
func (l *Lister) UpdateFileEntry(path string) {
	dir, name := filepath.Split(path)
	dir = filepath.Clean(dir)

	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.dirs[dir]
	if !ok {
		return
	}

	mtime, ctime, err := statTimes(path, true)
	if err != nil {
		l.logger.Warn("cannot update file entry", "path", path, "error", err)
		return
	}

	e := Entry{Name: name, ModTime: mtime, ChangeTime: ctime}
	d.cased[name] = e
	d.folded[strings.ToLower(name)] = e
}

// Entries gibt alle Eintraege von dir natuerlich sortiert zurueck
func (l *Lister) Entries(dir string) ([]Entry, error) {
	d, err := l.dir(filepath.Clean(dir))
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	entries := make([]Entry, 0, len(d.cased))
	for _, e := range d.cased {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	slices.SortFunc(entries, func(a, b Entry) int {
		return NaturalSortKey(a.Name).Compare(NaturalSortKey(b.Name))
	})
	return entries, nil
}

// Preload scannt dirs parallel (HYPERTILE_PRELOAD_CONCURRENCY) in den Cache
func (l *Lister) Preload(ctx context.Context, dirs ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(int(envconfig.PreloadConcurrency()), 1))

	for _, dir := range dirs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := l.dir(filepath.Clean(dir)); err != nil {
				return fmt.Errorf("preload %s: %w", dir, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// dir gibt das gecachte Verzeichnis zurueck und scannt es bei Bedarf.
// Der Scan laeuft ohne Lock; gewinnt ein paralleler Scan, wird dessen Ergebnis verwendet.
func (l *Lister) dir(dir string) (*cachedDir, error) {
	l.mu.RLock()
	d, ok := l.dirs[dir]
	l.mu.RUnlock()
	if ok {
		return d, nil
	}

	d, err := scan(dir)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.dirs[dir]; ok {
		return existing, nil
	}
	l.dirs[dir] = d
	l.logger.Debug("scanned directory", "dir", dir, "entries", len(d.cased))
	return d, nil
}

func scan(dir string) (*cachedDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	d := &cachedDir{
		cased:  make(map[string]Entry, len(entries)),
		folded: make(map[string]Entry, len(entries)),
	}
	for _, de := range entries {
		mtime, ctime, err := statTimes(filepath.Join(dir, de.Name()), false)
		if err != nil {
			// zwischen ReadDir und lstat geloescht
			continue
		}

		e := Entry{Name: de.Name(), ModTime: mtime, ChangeTime: ctime}
		d.cased[e.Name] = e
		d.folded[strings.ToLower(e.Name)] = e
	}
	return d, nil
}
