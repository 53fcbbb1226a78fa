// job.go - Zustand eines Generierungs-Jobs ueber mehrere Passes
//
// Ein Job haelt die Zieldimensionen des aktuellen Passes und die groessten
// bisher gesehenen Latent-Dimensionen. Die Interceptoren eines Scopes
// greifen ueber ihren Closure auf genau einen Job zu; mehrere Jobs koennen
// daher parallel auf verschiedenen Netzwerken laufen.
package hypertile

import (
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

// Decision beschreibt die Kachel-Entscheidung eines Forward-Aufrufs
type Decision struct {
	Module string
	Rank   int

	// H, W sind die Dimensionen der Stufe (Pixel bei Rang 4, Latent bei Rang 3)
	H, W int

	// NH, NW ist das gewaehlte (bei Rang 3 bereits tiefenskalierte) Raster
	NH, NW int

	// Depth ist log2 des Verkleinerungsfaktors gegenueber der vollen Aufloesung
	Depth int
	Split bool

	// Fallback ist true, wenn der gekachelte Pfad fehlschlug
	Fallback bool
}

// Observer wird nach jeder Entscheidung aufgerufen
type Observer func(Decision)

// Job ist der Kontext eines Generierungs-Jobs (z.B. Basis-Pass plus Hires-Pass)
type Job struct {
	ID string

	logger   *slog.Logger
	reporter Reporter
	observer Observer

	mu            sync.Mutex
	rng           *rand.Rand
	height, width int
	maxH, maxW    int
	resetNeeded   bool
}

// JobOption konfiguriert einen Job
type JobOption func(*Job)

// WithSeed macht die Raster-Auswahl reproduzierbar
func WithSeed(seed uint64) JobOption {
	return func(j *Job) {
		j.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLogger setzt den Logger des Jobs
func WithLogger(logger *slog.Logger) JobOption {
	return func(j *Job) {
		j.logger = logger
	}
}

// WithReporter ersetzt den Standard-OnceReporter
func WithReporter(r Reporter) JobOption {
	return func(j *Job) {
		j.reporter = r
	}
}

// WithObserver registriert einen Beobachter fuer Kachel-Entscheidungen
func WithObserver(o Observer) JobOption {
	return func(j *Job) {
		j.observer = o
	}
}

// NewJob erzeugt einen Job ohne Dimensionen; Begin muss vor dem ersten Scope laufen
func NewJob(opts ...JobOption) *Job {
	j := &Job{ID: uuid.NewString()}
	for _, opt := range opts {
		opt(j)
	}

	if j.logger == nil {
		j.logger = slog.Default()
	}
	j.logger = j.logger.With("job", j.ID)

	if j.reporter == nil {
		j.reporter = NewOnceReporter(j.logger)
	}
	if j.rng == nil {
		j.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return j
}

// Begin initialisiert den Job fuer einen neuen VAE- oder UNet-Kontext:
// Fehlermeldungen zuruecksetzen, Dimensionen setzen, Maxima auf 0
func (j *Job) Begin(height, width int) {
	j.reporter.Reset()

	j.mu.Lock()
	defer j.mu.Unlock()
	j.height, j.width = height, width
	j.maxH, j.maxW = 0, 0
}

// MarkNewPass setzt die Dimensionen des naechsten Passes und erzwingt, dass
// der naechste Forward-Aufruf die Kandidaten neu berechnet
func (j *Job) MarkNewPass(height, width int) {
	j.reporter.Reset()

	j.mu.Lock()
	defer j.mu.Unlock()
	j.height, j.width = height, width
	j.resetNeeded = true
}

// Dims gibt die aktuellen Zieldimensionen in Pixeln zurueck
func (j *Job) Dims() (height, width int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.height, j.width
}

// Max gibt die groessten gesehenen Latent-Dimensionen zurueck
func (j *Job) Max() (maxH, maxW int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.maxH, j.maxW
}

// ResetPending meldet, ob MarkNewPass noch nicht verarbeitet wurde
func (j *Job) ResetPending() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.resetNeeded
}

// Logger gibt den Job-Logger (mit Job-ID) zurueck
func (j *Job) Logger() *slog.Logger {
	return j.logger
}

func (j *Job) observe(d Decision) {
	if j.observer != nil {
		j.observer(d)
	}
}
