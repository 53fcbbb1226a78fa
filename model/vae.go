// vae.go - VAE-Decoder des Referenzmodells
//
// Der Decoder rechnet Attention im Mid-Block auf dem Latent [B, C, H, W]
// und vergroessert danach um den Faktor 8 (Nearest Neighbor).
// Die Modulnamen folgen dem Backend:
//   - diffusers: decoder.mid_block.attentions.0
//   - original:  decoder.mid.attn_1
package model

import (
	"math/rand/v2"

	"github.com/7blacky7/hypertile/hypertile"
	"github.com/7blacky7/hypertile/ml"
	"github.com/7blacky7/hypertile/ml/nn"
)

// VAE ist der Autoencoder; hier nur der Decoder-Pfad
type VAE struct {
	Decoder *Decoder `nn:"decoder"`
}

// Decoder haelt die Mid-Block-Attention
type Decoder struct {
	backend hypertile.Backend
	Attn    nn.Attention
}

func newVAE(backend hypertile.Backend, cfg Config, rng *rand.Rand) *VAE {
	var attn nn.Attention
	if backend == hypertile.BackendOriginal {
		attn = nn.NewAttnBlock(cfg.weights(rng))
	} else {
		// diffusers verwendet die allgemeine Attention auch im VAE
		attn = nn.NewSelfAttention(cfg.weights(rng))
	}
	return &VAE{Decoder: &Decoder{backend: backend, Attn: attn}}
}

// Forward dekodiert ein Latent [B, C, H, W] in ein Bild [B, C, 8H, 8W]
func (v *VAE) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	return v.Decoder.Forward(x)
}

// Children benennt die Mid-Block-Attention nach Backend-Konvention
func (d *Decoder) Children() []nn.Named {
	name := "mid_block.attentions.0"
	if d.backend == hypertile.BackendOriginal {
		name = "mid.attn_1"
	}
	return []nn.Named{{Name: name, Module: d.Attn}}
}

// Forward wendet die Mid-Block-Attention an und vergroessert um 8
func (d *Decoder) Forward(x *ml.Tensor) (*ml.Tensor, error) {
	h, err := d.Attn.Forward(x)
	if err != nil {
		return nil, err
	}
	return upsample(h, 8), nil
}

// upsample vergroessert [B, C, H, W] per Nearest Neighbor um factor
func upsample(x *ml.Tensor, factor int) *ml.Tensor {
	b, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	H, W := h*factor, w*factor

	src := x.Floats()
	dst := make([]float32, b*c*H*W)
	for bc := range b * c {
		for i := range H {
			for j := range W {
				dst[(bc*H+i)*W+j] = src[(bc*h+i/factor)*w+j/factor]
			}
		}
	}
	return ml.FromFloats(dst, b, c, H, W)
}
