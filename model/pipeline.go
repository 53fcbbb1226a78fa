// pipeline.go - Text-zu-Bild-Lauf mit optionalem Hires-Pass
//
// Ein Lauf besteht aus einem oder mehreren Passes. Jeder Pass entrauscht
// ein Latent in der Zielaufloesung im UNet-Scope und dekodiert es im
// VAE-Scope. Vor jedem weiteren Pass wird der Job per SetPass auf die
// neue Aufloesung umgestellt.
package model

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/7blacky7/hypertile/hypertile"
	"github.com/7blacky7/hypertile/ml"
)

// Pass beschreibt eine Aufloesung und die Anzahl der Schritte
type Pass struct {
	Height, Width int
	Steps         int
}

// Result ist das Ergebnis eines Passes
type Result struct {
	Pass  Pass
	Image *ml.Tensor

	// UNetModules/VAEModules sind die im Pass abgefangenen Module
	UNetModules []string
	VAEModules  []string
}

// Generate fuehrt alle Passes aus. Der Kontext wird zwischen Schritten geprueft.
func (m *StableDiffusion) Generate(ctx context.Context, job *hypertile.Job, opts hypertile.Options, seed uint64, passes ...Pass) ([]Result, error) {
	var results []Result
	for i, pass := range passes {
		res, err := m.RunPass(ctx, job, opts, i, pass, seed+uint64(i))
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// RunPass fuehrt den Pass mit Index index aus. Ab dem zweiten Pass wird der
// Job vorher per SetPass auf die neue Aufloesung umgestellt.
func (m *StableDiffusion) RunPass(ctx context.Context, job *hypertile.Job, opts hypertile.Options, index int, pass Pass, seed uint64) (Result, error) {
	req := hypertile.Request{Height: pass.Height, Width: pass.Width, Model: m}
	if index > 0 {
		hypertile.SetPass(job, req)
	}

	res, err := m.runPass(ctx, job, opts, req, pass, seed, job.Logger())
	if err != nil {
		return res, fmt.Errorf("pass %d (%dx%d): %w", index, pass.Width, pass.Height, err)
	}
	return res, nil
}

func (m *StableDiffusion) runPass(ctx context.Context, job *hypertile.Job, opts hypertile.Options, req hypertile.Request, pass Pass, seed uint64, logger *slog.Logger) (Result, error) {
	res := Result{Pass: pass}

	latent, err := m.NewLatent(pass.Height, pass.Width, seed)
	if err != nil {
		return res, err
	}

	latent, res.UNetModules, err = m.denoise(ctx, job, opts, req, latent, pass.Steps, logger)
	if err != nil {
		return res, err
	}

	res.Image, res.VAEModules, err = m.decode(job, opts, req, latent, logger)
	return res, err
}

func (m *StableDiffusion) denoise(ctx context.Context, job *hypertile.Job, opts hypertile.Options, req hypertile.Request, latent *ml.Tensor, steps int, logger *slog.Logger) (*ml.Tensor, []string, error) {
	scope, err := hypertile.ContextUNet(job, req, opts, logger)
	if err != nil {
		return nil, nil, err
	}
	defer scope.Close()

	for step := range max(steps, 1) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		if latent, err = m.UNet.Forward(latent); err != nil {
			return nil, nil, fmt.Errorf("unet step %d: %w", step, err)
		}
		latent = m.config.round(latent)
	}
	return latent, scope.Patched(), nil
}

func (m *StableDiffusion) decode(job *hypertile.Job, opts hypertile.Options, req hypertile.Request, latent *ml.Tensor, logger *slog.Logger) (*ml.Tensor, []string, error) {
	scope, err := hypertile.ContextVAE(job, req, opts, logger)
	if err != nil {
		return nil, nil, err
	}
	defer scope.Close()

	img, err := m.VAE.Forward(latent)
	if err != nil {
		return nil, nil, fmt.Errorf("vae decode: %w", err)
	}
	return m.config.round(img), scope.Patched(), nil
}
