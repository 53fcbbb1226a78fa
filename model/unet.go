// unet.go - UNet des Referenzmodells
//
// Jede Stufe i arbeitet auf dem um 2^i verkleinerten Latent als Sequenz
// [B, H*W, C]. Jeder Block hat attn1 (Self-Attention) und attn2
// (Cross-Attention auf dem Text-Conditioning).
package model

import (
	"math/rand/v2"

	"github.com/7blacky7/hypertile/hypertile"
	"github.com/7blacky7/hypertile/ml"
	"github.com/7blacky7/hypertile/ml/nn"
)

// UNet ist der Rauschschaetzer
type UNet struct {
	DownBlocks []*UNetBlock `nn:"down_blocks"`
	MidBlock   *UNetBlock   `nn:"mid_block"`
}

// UNetBlock ist ein Transformer-Block einer Aufloesungsstufe
type UNetBlock struct {
	Attn1 nn.Attention `nn:"attn1"`
	Attn2 nn.Attention `nn:"attn2"`

	// factor ist die Verkleinerung gegenueber dem Latent
	factor int
}

func newUNet(backend hypertile.Backend, cfg Config, rng *rand.Rand) *UNet {
	conditioning := func() *ml.Tensor {
		data := make([]float32, cfg.ContextTokens*cfg.Channels)
		for i := range data {
			data[i] = float32(rng.NormFloat64())
		}
		return cfg.round(ml.FromFloats(data, 1, cfg.ContextTokens, cfg.Channels))
	}

	block := func(factor int) *UNetBlock {
		b := &UNetBlock{factor: factor}
		// LDM verwendet CrossAttention auch fuer attn1 (ohne Conditioning)
		if backend == hypertile.BackendOriginal {
			b.Attn1 = nn.NewCrossAttention(cfg.weights(rng), nil)
		} else {
			b.Attn1 = nn.NewSelfAttention(cfg.weights(rng))
		}
		b.Attn2 = nn.NewCrossAttention(cfg.weights(rng), conditioning())
		return b
	}

	u := &UNet{}
	for i := range cfg.Levels {
		u.DownBlocks = append(u.DownBlocks, block(1<<i))
	}
	u.MidBlock = block(1 << cfg.Levels)
	return u
}

// Forward schaetzt das Rauschen im Latent [B, C, H, W] und gibt das
// entrauschte Latent gleicher Form zurueck
func (u *UNet) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	var top *ml.Tensor
	for _, blk := range append(append([]*UNetBlock{}, u.DownBlocks...), u.MidBlock) {
		seq, err := toSequence(x, blk.factor)
		if err != nil {
			return nil, err
		}

		out, err := blk.Forward(seq)
		if err != nil {
			return nil, err
		}
		if blk.factor == 1 {
			top = out
		}
	}

	if top == nil {
		return x, nil
	}

	b, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	eps, err := fromSequence(top, b, c, h, w)
	if err != nil {
		return nil, err
	}

	// ein Euler-Schritt mit fester Schrittweite
	xs, es := x.Floats(), eps.Floats()
	for i := range xs {
		xs[i] -= 0.1 * es[i]
	}
	return ml.FromFloats(xs, x.Shape()...), nil
}

// Forward fuehrt attn1 und attn2 mit Residual auf [B, N, C] aus
func (b *UNetBlock) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	for _, attn := range []nn.Attention{b.Attn1, b.Attn2} {
		out, err := attn.Forward(x)
		if err != nil {
			return nil, err
		}
		x = add(x, out)
	}
	return x, nil
}

// toSequence verkleinert [B, C, H, W] um factor (jedes factor-te Pixel) und
// gibt [B, (H/f)*(W/f), C] zurueck
func toSequence(x *ml.Tensor, factor int) (*ml.Tensor, error) {
	b, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	hs, ws := max(1, h/factor), max(1, w/factor)

	src := x.Floats()
	dst := make([]float32, 0, b*hs*ws*c)
	for bi := range b {
		for i := range hs {
			for j := range ws {
				for ci := range c {
					dst = append(dst, src[((bi*c+ci)*h+i*factor)*w+j*factor])
				}
			}
		}
	}
	return ml.FromFloats(dst, b, hs*ws, c), nil
}

// fromSequence wandelt [B, H*W, C] zurueck nach [B, C, H, W]
func fromSequence(x *ml.Tensor, b, c, h, w int) (*ml.Tensor, error) {
	t, err := x.Reshape(b, h, w, c)
	if err != nil {
		return nil, err
	}
	return t.Permute(0, 3, 1, 2)
}

func add(a, b *ml.Tensor) *ml.Tensor {
	as, bs := a.Floats(), b.Floats()
	for i := range as {
		as[i] += bs[i]
	}
	return ml.FromFloats(as, a.Shape()...)
}
