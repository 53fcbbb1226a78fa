// Package model - Referenz-Diffusionsmodell
//
// Dieses Paket enthaelt ein kleines Latent-Diffusionsmodell, dessen
// Modul-Baum dem eines Stable-Diffusion-Checkpoints entspricht: ein UNet
// mit Self-Attention (attn1) und Cross-Attention (attn2) auf mehreren
// Aufloesungsstufen und ein VAE-Decoder mit Attention im Mid-Block.
// Gerechnet wird auf der CPU mit den Referenz-Modulen aus ml/nn.
//
// Hauptkomponenten:
// - Config: Kanaele, Stufen, Conditioning-Laenge, Seed
// - StableDiffusion: Modell-Halter fuer beide Backends
// - New: Erstellt eine Modell-Instanz
package model

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/7blacky7/hypertile/hypertile"
	"github.com/7blacky7/hypertile/ml"
	"github.com/7blacky7/hypertile/ml/nn"
)

// Fehler-Definitionen
var (
	ErrInvalidConfig = errors.New("invalid model config")
	ErrInvalidSize   = errors.New("image size must be a positive multiple of 8")
)

// Config beschreibt die Architektur des Referenzmodells
type Config struct {
	// Channels ist die Kanalzahl des Latents und aller Attention-Module
	Channels int

	// Levels ist die Anzahl der Down-Stufen; der Mid-Block liegt eine Stufe tiefer
	Levels int

	// ContextTokens ist die Laenge des Text-Conditionings fuer Cross-Attention
	ContextTokens int

	// HalfPrecision rundet Gewichte und Aktivierungen auf float16 wie bei fp16-Inferenz
	HalfPrecision bool

	Seed uint64
}

// DefaultConfig gibt eine kleine, schnell rechenbare Architektur zurueck
func DefaultConfig() Config {
	return Config{Channels: 4, Levels: 2, ContextTokens: 8, Seed: 42}
}

// Validate prueft die Konfiguration
func (c Config) Validate() error {
	if c.Channels < 1 || c.Levels < 0 || c.ContextTokens < 1 {
		return fmt.Errorf("%w: %+v", ErrInvalidConfig, c)
	}
	return nil
}

// weights erzeugt die Gewichte eines Attention-Moduls
func (c Config) weights(rng *rand.Rand) nn.Weights {
	w := nn.NewWeights(c.Channels, rng)
	if c.HalfPrecision {
		return w.Half()
	}
	return w
}

// round bringt t auf die Rechengenauigkeit des Modells
func (c Config) round(t *ml.Tensor) *ml.Tensor {
	if c.HalfPrecision {
		return t.Half()
	}
	return t
}

// StableDiffusion haelt UNet und VAE und erfuellt hypertile.ModelHolder
type StableDiffusion struct {
	backend hypertile.Backend
	config  Config

	UNet *UNet
	VAE  *VAE
}

// New erstellt ein Modell mit zufaelligen, aus cfg.Seed abgeleiteten Gewichten
func New(backend hypertile.Backend, cfg Config) (*StableDiffusion, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	return &StableDiffusion{
		backend: backend,
		config:  cfg,
		UNet:    newUNet(backend, cfg, rng),
		VAE:     newVAE(backend, cfg, rng),
	}, nil
}

// Backend gibt das Backend zurueck, nach dessen Konventionen das Modell benannt ist
func (m *StableDiffusion) Backend() hypertile.Backend {
	return m.backend
}

// Config gibt die Architektur zurueck
func (m *StableDiffusion) Config() Config {
	return m.config
}

// Component gibt UNet oder VAE unter ihrem Backend-Namen zurueck, sonst nil
func (m *StableDiffusion) Component(name string) nn.Module {
	switch {
	case m.backend == hypertile.BackendDiffusers && name == "unet",
		m.backend == hypertile.BackendOriginal && name == "model.diffusion_model":
		if m.UNet != nil {
			return m.UNet
		}
	case m.backend == hypertile.BackendDiffusers && name == "vae",
		m.backend == hypertile.BackendOriginal && name == "first_stage_model":
		if m.VAE != nil {
			return m.VAE
		}
	}
	return nil
}

// NewLatent erzeugt ein normalverteiltes Latent [1, C, H/8, W/8]
func (m *StableDiffusion) NewLatent(height, width int, seed uint64) (*ml.Tensor, error) {
	if height <= 0 || width <= 0 || height%8 != 0 || width%8 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb))
	data := make([]float32, m.config.Channels*(height/8)*(width/8))
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return m.config.round(ml.FromFloats(data, 1, m.config.Channels, height/8, width/8)), nil
}
