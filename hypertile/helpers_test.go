// helpers_test.go - Test-Module und Hilfsfunktionen
package hypertile

import (
	"io"
	"log/slog"
	"sync"

	"github.com/7blacky7/hypertile/ml"
	"github.com/7blacky7/hypertile/ml/nn"
)

// recorder ist ein Attention-Modul, das seinen Eingang unveraendert zurueckgibt
// und jeden Aufruf mitschreibt
type recorder struct {
	nn.Hook

	cross bool
	fail  func(x *ml.Tensor) error

	mu     sync.Mutex
	inputs []*ml.Tensor
}

func (r *recorder) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return r.Call(x, r.forward)
}

func (r *recorder) forward(x *ml.Tensor) (*ml.Tensor, error) {
	r.mu.Lock()
	r.inputs = append(r.inputs, x)
	r.mu.Unlock()

	if r.fail != nil {
		if err := r.fail(x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func (r *recorder) IsCrossAttention() bool {
	return r.cross
}

// shapes gibt die Formen aller bisherigen Eingaenge zurueck
func (r *recorder) shapes() [][]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]int, len(r.inputs))
	for i, x := range r.inputs {
		out[i] = x.Shape()
	}
	return out
}

// plain ist ein Modul ohne Attention-Markierung
type plain struct{}

func (plain) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return x, nil
}

// network fuehrt seine Kinder nacheinander aus
type network struct {
	children []nn.Named
}

func newNetwork(kv ...any) *network {
	n := &network{}
	for i := 0; i+1 < len(kv); i += 2 {
		n.children = append(n.children, nn.Named{Name: kv[i].(string), Module: kv[i+1].(nn.Module)})
	}
	return n
}

func (n *network) Children() []nn.Named {
	return n.children
}

func (n *network) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	for _, c := range n.children {
		var err error
		if x, err = c.Module.Forward(x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// fakeReporter sammelt alle Meldungen
type fakeReporter struct {
	mu     sync.Mutex
	errs   []error
	resets int
}

func (r *fakeReporter) Report(err error, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *fakeReporter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
}

func (r *fakeReporter) reported() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// decisions sammelt Entscheidungen ueber WithObserver
type decisions struct {
	mu  sync.Mutex
	all []Decision
}

func (d *decisions) observe(dec Decision) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = append(d.all, dec)
}

func (d *decisions) list() []Decision {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Decision(nil), d.all...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestJob erzeugt einen reproduzierbaren Job mit gesetzten Dimensionen
func newTestJob(height, width int, opts ...JobOption) *Job {
	j := NewJob(append([]JobOption{WithSeed(1), WithLogger(discardLogger())}, opts...)...)
	j.Begin(height, width)
	return j
}
