// wrapper.go - Interceptor fuer einzelne Forward-Aufrufe
//
// Rang 4 [B, C, H, W] (VAE): Raster direkt anwenden.
// Rang 3 [B, H*W, C] (UNet): H/W aus Sequenzlaenge und Seitenverhaeltnis
// ableiten, volle Aufloesung nachfuehren, Raster mit der Tiefe verkleinern.
package hypertile

import (
	"context"
	"math"
	"math/bits"

	"github.com/7blacky7/hypertile/logutil"
	"github.com/7blacky7/hypertile/ml"
	"github.com/7blacky7/hypertile/ml/nn"
)

func (s *Scope) intercept(name string) nn.Interceptor {
	return func(x *ml.Tensor, next nn.ForwardFunc) (*ml.Tensor, error) {
		nh, nw := s.draw()

		switch x.Rank() {
		case 4:
			return s.forwardSpatial(name, x, next, nh, nw)
		case 3:
			return s.forwardSequence(name, x, next, nh, nw)
		default:
			return next(x)
		}
	}
}

// draw waehlt ein zufaelliges Raster aus den aktuellen Kandidaten
func (s *Scope) draw() (nh, nw int) {
	s.job.mu.Lock()
	defer s.job.mu.Unlock()
	return s.nhs[s.job.rng.IntN(len(s.nhs))], s.nws[s.job.rng.IntN(len(s.nws))]
}

func (s *Scope) forwardSpatial(name string, x *ml.Tensor, next nn.ForwardFunc, nh, nw int) (*ml.Tensor, error) {
	d := Decision{Module: name, Rank: 4, H: x.Dim(2), W: x.Dim(3), NH: nh, NW: nw}
	defer s.observe(&d)

	if nh*nw <= 1 {
		return next(x)
	}

	return s.runTiled(&d, x, next,
		func(x *ml.Tensor) (*ml.Tensor, error) { return SplitSpatial(x, nh, nw) },
		func(out *ml.Tensor) (*ml.Tensor, error) { return MergeSpatial(out, nh, nw) })
}

func (s *Scope) forwardSequence(name string, x *ml.Tensor, next nn.ForwardFunc, nh, nw int) (*ml.Tensor, error) {
	hw := x.Dim(1)
	if hw == 0 {
		return next(x)
	}

	h, w, height := s.track(hw)

	d := Decision{Module: name, Rank: 3, H: h, W: w}
	defer s.observe(&d)

	// tiefere Stufen arbeiten auf kleinerer Aufloesung, also weniger Kacheln
	ratio := max(1, height/stride/max(h, 1))
	pow2 := ratio&(ratio-1) == 0
	d.Depth = bits.Len(uint(ratio)) - 1
	d.NH, d.NW = max(1, nh/ratio), max(1, nw/ratio)

	// Verhaeltnisse, die keine Zweierpotenz sind, entsprechen keiner Netzwerk-Stufe
	if !pow2 || d.Depth > s.opts.Depth || d.NH*d.NW <= 1 || h%d.NH != 0 || w%d.NW != 0 {
		return next(x)
	}

	return s.runTiled(&d, x, next,
		func(x *ml.Tensor) (*ml.Tensor, error) { return SplitSequence(x, h, w, d.NH, d.NW) },
		func(out *ml.Tensor) (*ml.Tensor, error) { return MergeSequence(out, h, w, d.NH, d.NW) })
}

// track leitet h/w der Stufe ab und fuehrt den Job-Zustand nach.
// Der erste Aufruf mit einer groesseren Dimension gilt als volle Aufloesung.
func (s *Scope) track(hw int) (h, w, height int) {
	s.job.mu.Lock()
	defer s.job.mu.Unlock()

	j := s.job
	if j.resetNeeded {
		// neuer Pass: Kandidaten und Maxima aus den Host-Dimensionen
		s.ar = float64(j.height) / float64(j.width)
		s.nhs = s.mustCandidates(j.height)
		s.nws = s.mustCandidates(j.width)
		j.maxH, j.maxW = j.height/stride, j.width/stride
		j.resetNeeded = false

		// Maxima bleiben bis zum naechsten Aufruf bei den Pass-Dimensionen
		h, w = s.latent(hw)
		return h, w, j.height
	}

	h, w = s.latent(hw)
	if h > j.maxH {
		j.height = stride * h
		j.maxH = h
		s.nhs = s.mustCandidates(j.height)
	}
	if w > j.maxW {
		j.width = stride * w
		j.maxW = w
		s.nws = s.mustCandidates(j.width)
	}

	return h, w, j.height
}

// latent leitet h/w aus der Token-Anzahl und dem Seitenverhaeltnis ab
func (s *Scope) latent(hw int) (h, w int) {
	h = int(math.Round(math.Sqrt(s.ar * float64(hw))))
	w = int(math.Round(math.Sqrt(float64(hw) / s.ar)))
	return h, w
}

// mustCandidates kann nicht fehlschlagen, weil SwapSize beim Oeffnen geprueft wurde
func (s *Scope) mustCandidates(dimension int) []int {
	ns, err := candidates(dimension, s.opts.TileSize, s.opts.MinTileSize, s.opts.SwapSize)
	if err != nil {
		panic(err)
	}
	return ns
}

// runTiled fuehrt next auf den Kacheln aus. Schlaegt Aufteilen, next oder
// Zusammenfuehren fehl, wird der Fehler gemeldet und next auf dem
// ungeteilten Eingang ausgefuehrt.
func (s *Scope) runTiled(d *Decision, x *ml.Tensor, next nn.ForwardFunc, split, merge func(*ml.Tensor) (*ml.Tensor, error)) (*ml.Tensor, error) {
	out, err := func() (*ml.Tensor, error) {
		tiles, err := split(x)
		if err != nil {
			return nil, err
		}
		out, err := next(tiles)
		if err != nil {
			return nil, err
		}
		return merge(out)
	}()
	if err == nil {
		d.Split = true
		return out, nil
	}

	height, width := s.job.Dims()
	s.job.reporter.Report(err, "module", d.Module, "width", width, "height", height)
	d.Fallback = true
	return next(x)
}

func (s *Scope) observe(d *Decision) {
	logutil.TraceContext(context.TODO(), s.job.logger, "hypertile forward",
		"module", d.Module, "rank", d.Rank, "h", d.H, "w", d.W,
		"nh", d.NH, "nw", d.NW, "depth", d.Depth, "split", d.Split, "fallback", d.Fallback)
	s.job.observe(*d)
}
