// attention.go - Referenz-Attention auf der CPU
//
// Dieses Modul enthaelt:
// - Weights: Q/K/V/Out-Projektionen als gonum-Matrizen
// - SelfAttention: Attention ueber Sequenzen [B, N, C] oder Bilder [B, C, H, W]
// - CrossAttention: wie SelfAttention, Keys/Values optional aus Conditioning
// - AttnBlock: VAE-Attention ueber [B, C, H, W] mit Residual
//
// Alle drei betten einen Hook ein und lassen sich damit kacheln.
package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/7blacky7/hypertile/ml"
)

// Weights sind die vier quadratischen Projektionen einer Attention [C, C]
type Weights struct {
	Q, K, V, Out *mat.Dense
}

// NewWeights erzeugt zufaellige, auf 1/sqrt(C) skalierte Gewichte
func NewWeights(channels int, rng *rand.Rand) Weights {
	scale := 1 / math.Sqrt(float64(channels))
	gen := func() *mat.Dense {
		data := make([]float64, channels*channels)
		for i := range data {
			data[i] = rng.NormFloat64() * scale
		}
		return mat.NewDense(channels, channels, data)
	}
	return Weights{Q: gen(), K: gen(), V: gen(), Out: gen()}
}

// IdentityWeights laesst Q/K/V/Out unveraendert (nuetzlich fuer Tests)
func IdentityWeights(channels int) Weights {
	eye := func() *mat.Dense {
		m := mat.NewDense(channels, channels, nil)
		for i := range channels {
			m.Set(i, i, 1)
		}
		return m
	}
	return Weights{Q: eye(), K: eye(), V: eye(), Out: eye()}
}

// Half rundet alle Gewichte auf Half-Precision (Kopie, w bleibt unveraendert)
func (w Weights) Half() Weights {
	round := func(m *mat.Dense) *mat.Dense {
		var out mat.Dense
		out.Apply(func(_, _ int, v float64) float64 {
			return float64(float16.Fromfloat32(float32(v)).Float32())
		}, m)
		return &out
	}
	return Weights{Q: round(w.Q), K: round(w.K), V: round(w.V), Out: round(w.Out)}
}

func (w Weights) channels() int {
	r, _ := w.Q.Dims()
	return r
}

// =============================================================================
// SelfAttention
// =============================================================================

// SelfAttention entspricht dem "Attention"-Block in Diffusers-Netzwerken
type SelfAttention struct {
	Hook
	Weights Weights
}

// NewSelfAttention erzeugt eine SelfAttention mit den gegebenen Gewichten
func NewSelfAttention(w Weights) *SelfAttention {
	return &SelfAttention{Weights: w}
}

// Forward akzeptiert [B, N, C] oder [B, C, H, W]
func (a *SelfAttention) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return a.Call(x, a.forward)
}

func (a *SelfAttention) forward(x *ml.Tensor) (*ml.Tensor, error) {
	if x.Rank() == 4 {
		return spatial(x, func(seq *ml.Tensor) (*ml.Tensor, error) {
			return attend(seq, nil, a.Weights)
		})
	}
	return attend(x, nil, a.Weights)
}

// IsCrossAttention ist fuer SelfAttention immer false
func (a *SelfAttention) IsCrossAttention() bool {
	return false
}

// =============================================================================
// CrossAttention
// =============================================================================

// CrossAttention entspricht dem LDM-Block gleichen Namens: ohne Conditioning
// verhaelt er sich wie Self-Attention (attn1), mit Conditioning als Cross-Attention (attn2)
type CrossAttention struct {
	Hook
	Weights Weights

	// Conditioning [B, M, C]; nil bedeutet Self-Attention
	Conditioning *ml.Tensor
}

// NewCrossAttention erzeugt eine CrossAttention mit optionalem Conditioning
func NewCrossAttention(w Weights, conditioning *ml.Tensor) *CrossAttention {
	return &CrossAttention{Weights: w, Conditioning: conditioning}
}

// Forward akzeptiert [B, N, C]
func (a *CrossAttention) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return a.Call(x, a.forward)
}

func (a *CrossAttention) forward(x *ml.Tensor) (*ml.Tensor, error) {
	return attend(x, a.Conditioning, a.Weights)
}

// IsCrossAttention meldet true, sobald Conditioning gesetzt ist
func (a *CrossAttention) IsCrossAttention() bool {
	return a.Conditioning != nil
}

// =============================================================================
// AttnBlock
// =============================================================================

// AttnBlock ist die Attention im Mid-Block eines VAE: [B, C, H, W] mit Residual
type AttnBlock struct {
	Hook
	Weights Weights
}

// NewAttnBlock erzeugt einen AttnBlock mit den gegebenen Gewichten
func NewAttnBlock(w Weights) *AttnBlock {
	return &AttnBlock{Weights: w}
}

// Forward akzeptiert nur [B, C, H, W]
func (a *AttnBlock) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return a.Call(x, a.forward)
}

func (a *AttnBlock) forward(x *ml.Tensor) (*ml.Tensor, error) {
	if x.Rank() != 4 {
		return nil, fmt.Errorf("%w: attn block expects [B, C, H, W], got %v", ml.ErrShape, x.Shape())
	}

	h, err := spatial(x, func(seq *ml.Tensor) (*ml.Tensor, error) {
		return attend(seq, nil, a.Weights)
	})
	if err != nil {
		return nil, err
	}

	out := x.Floats()
	for i, v := range h.Floats() {
		out[i] += v
	}
	return ml.FromFloats(out, x.Shape()...), nil
}

// IsCrossAttention ist fuer AttnBlock immer false
func (a *AttnBlock) IsCrossAttention() bool {
	return false
}

// =============================================================================
// Hilfsfunktionen
// =============================================================================

// spatial fuehrt fn auf [B, H*W, C] aus und bringt das Ergebnis zurueck nach [B, C, H, W]
func spatial(x *ml.Tensor, fn func(*ml.Tensor) (*ml.Tensor, error)) (*ml.Tensor, error) {
	b, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)

	seq, err := x.Permute(0, 2, 3, 1)
	if err != nil {
		return nil, err
	}
	if seq, err = seq.Reshape(b, h*w, c); err != nil {
		return nil, err
	}

	out, err := fn(seq)
	if err != nil {
		return nil, err
	}

	if out, err = out.Reshape(b, h, w, c); err != nil {
		return nil, err
	}
	return out.Permute(0, 3, 1, 2)
}

// attend berechnet softmax(Q K^T / sqrt(C)) V W_out pro Batch-Element.
// Ist cond nil, stammen Keys/Values aus x.
func attend(x, cond *ml.Tensor, w Weights) (*ml.Tensor, error) {
	if x.Rank() != 3 {
		return nil, fmt.Errorf("%w: attention expects [B, N, C], got %v", ml.ErrShape, x.Shape())
	}

	b, n, c := x.Dim(0), x.Dim(1), x.Dim(2)
	if c != w.channels() {
		return nil, fmt.Errorf("%w: %d channels, weights have %d", ml.ErrShape, c, w.channels())
	}

	kv, m := x, n
	if cond != nil {
		if cond.Rank() != 3 || cond.Dim(0) != b || cond.Dim(2) != c {
			return nil, fmt.Errorf("%w: conditioning %v does not match input %v", ml.ErrShape, cond.Shape(), x.Shape())
		}
		kv, m = cond, cond.Dim(1)
	}

	xs, kvs := toFloat64(x.Floats()), toFloat64(kv.Floats())
	out := make([]float32, 0, b*n*c)
	scale := 1 / math.Sqrt(float64(c))

	for i := range b {
		xi := mat.NewDense(n, c, xs[i*n*c:(i+1)*n*c])
		ci := mat.NewDense(m, c, kvs[i*m*c:(i+1)*m*c])

		var q, k, v mat.Dense
		q.Mul(xi, w.Q)
		k.Mul(ci, w.K)
		v.Mul(ci, w.V)

		var scores mat.Dense
		scores.Mul(&q, k.T())
		scores.Scale(scale, &scores)
		for r := range n {
			softmax(scores.RawRowView(r))
		}

		var attn, o mat.Dense
		attn.Mul(&scores, &v)
		o.Mul(&attn, w.Out)

		for _, f := range o.RawMatrix().Data {
			out = append(out, float32(f))
		}
	}

	return ml.FromFloats(out, b, n, c), nil
}

// softmax normiert row in-place
func softmax(row []float64) {
	floats.AddConst(-floats.Max(row), row)
	for i, v := range row {
		row[i] = math.Exp(v)
	}
	floats.Scale(1/floats.Sum(row), row)
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
