// model_test.go - Tests fuer das Referenzmodell und den Generierungs-Lauf
package model

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/7blacky7/hypertile/hypertile"
	"github.com/7blacky7/hypertile/ml"
	"github.com/7blacky7/hypertile/ml/nn"
)

func newModel(t *testing.T, backend hypertile.Backend) *StableDiffusion {
	t.Helper()

	m, err := New(backend, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func newJob(opts ...hypertile.JobOption) *hypertile.Job {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return hypertile.NewJob(append([]hypertile.JobOption{hypertile.WithSeed(3), hypertile.WithLogger(logger)}, opts...)...)
}

// tilingOptions aktiviert beide Stufen mit kleinen Kacheln fuer kleine Bilder
func tilingOptions() hypertile.Options {
	o := hypertile.DefaultOptions()
	o.VAEEnabled, o.UNetEnabled = true, true
	o.VAETile, o.UNetTile, o.MinTile = 32, 32, 8
	return o
}

func names(named []nn.Named) []string {
	out := make([]string, len(named))
	for i, n := range named {
		out[i] = n.Name
	}
	return out
}

// installed gibt alle Module mit aktivem Interceptor zurueck
func installed(m *StableDiffusion) []string {
	var out []string
	for _, root := range []nn.Module{m.UNet, m.VAE} {
		for _, n := range nn.NamedModules(root) {
			if attn, ok := n.Module.(nn.Attention); ok && attn.AttentionHook().Installed() {
				out = append(out, n.Name)
			}
		}
	}
	return out
}

func TestNewValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels = 0
	if _, err := New(hypertile.BackendDiffusers, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, erwartet ErrInvalidConfig", err)
	}
}

func TestComponent(t *testing.T) {
	tests := []struct {
		backend       hypertile.Backend
		vae, unet     string
		wrongVAE      string
		wrongUNet     string
	}{
		{hypertile.BackendOriginal, "first_stage_model", "model.diffusion_model", "vae", "unet"},
		{hypertile.BackendDiffusers, "vae", "unet", "first_stage_model", "model.diffusion_model"},
	}

	for _, tt := range tests {
		t.Run(tt.backend.String(), func(t *testing.T) {
			m := newModel(t, tt.backend)

			if got := m.Component(tt.vae); got != nn.Module(m.VAE) {
				t.Errorf("Component(%q) = %v, erwartet VAE", tt.vae, got)
			}
			if got := m.Component(tt.unet); got != nn.Module(m.UNet) {
				t.Errorf("Component(%q) = %v, erwartet UNet", tt.unet, got)
			}
			for _, name := range []string{tt.wrongVAE, tt.wrongUNet, "text_encoder"} {
				if got := m.Component(name); got != nil {
					t.Errorf("Component(%q) = %v, erwartet nil", name, got)
				}
			}
		})
	}
}

func TestTargetNames(t *testing.T) {
	tests := []struct {
		backend hypertile.Backend
		unet    []string
		vae     []string
	}{
		{
			hypertile.BackendOriginal,
			[]string{"down_blocks.0.attn1", "down_blocks.1.attn1", "mid_block.attn1"},
			[]string{"decoder.mid.attn_1"},
		},
		{
			hypertile.BackendDiffusers,
			[]string{"down_blocks.0.attn1", "down_blocks.1.attn1", "mid_block.attn1"},
			[]string{"decoder.mid_block.attentions.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.backend.String(), func(t *testing.T) {
			m := newModel(t, tt.backend)

			if diff := cmp.Diff(tt.unet, names(hypertile.Targets(m.UNet))); diff != "" {
				t.Errorf("UNet (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.vae, names(hypertile.Targets(m.VAE))); diff != "" {
				t.Errorf("VAE (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewLatent(t *testing.T) {
	m := newModel(t, hypertile.BackendDiffusers)

	x, err := m.NewLatent(64, 128, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 4, 8, 16}, x.Shape()); diff != "" {
		t.Errorf("Form (-want +got):\n%s", diff)
	}

	y, _ := m.NewLatent(64, 128, 1)
	if !x.Equal(y) {
		t.Error("gleicher Seed, verschiedene Latents")
	}

	for _, size := range [][2]int{{0, 64}, {64, 60}, {-8, 64}} {
		if _, err := m.NewLatent(size[0], size[1], 1); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("%v: err = %v, erwartet ErrInvalidSize", size, err)
		}
	}
}

func TestGenerateWithHiresPass(t *testing.T) {
	for _, backend := range []hypertile.Backend{hypertile.BackendOriginal, hypertile.BackendDiffusers} {
		t.Run(backend.String(), func(t *testing.T) {
			m := newModel(t, backend)

			var mu sync.Mutex
			var splits []hypertile.Decision
			job := newJob(hypertile.WithObserver(func(d hypertile.Decision) {
				if d.Split {
					mu.Lock()
					splits = append(splits, d)
					mu.Unlock()
				}
			}))

			results, err := m.Generate(context.Background(), job, tilingOptions(), 1,
				Pass{Height: 64, Width: 64, Steps: 2},
				Pass{Height: 128, Width: 128, Steps: 1})
			if err != nil {
				t.Fatal(err)
			}

			if len(results) != 2 {
				t.Fatalf("%d Ergebnisse, erwartet 2", len(results))
			}
			if diff := cmp.Diff([]int{1, 4, 64, 64}, results[0].Image.Shape()); diff != "" {
				t.Errorf("Basis-Pass (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]int{1, 4, 128, 128}, results[1].Image.Shape()); diff != "" {
				t.Errorf("Hires-Pass (-want +got):\n%s", diff)
			}

			for _, res := range results {
				if len(res.UNetModules) != 3 || len(res.VAEModules) != 1 {
					t.Errorf("%dx%d: UNet %v, VAE %v", res.Pass.Width, res.Pass.Height, res.UNetModules, res.VAEModules)
				}
			}

			// beide Stufen haben tatsaechlich gekachelt
			ranks := map[int]bool{}
			for _, d := range splits {
				ranks[d.Rank] = true
			}
			if !ranks[3] || !ranks[4] {
				t.Errorf("gekachelte Raenge %v, erwartet 3 und 4", ranks)
			}

			if got := installed(m); len(got) != 0 {
				t.Errorf("nach Generate noch abgefangen: %v", got)
			}
			if job.ResetPending() {
				t.Error("Reset des Hires-Passes wurde nie verarbeitet")
			}
		})
	}
}

func TestGenerateWithoutTiling(t *testing.T) {
	m := newModel(t, hypertile.BackendDiffusers)

	run := func() []Result {
		results, err := m.Generate(context.Background(), newJob(), hypertile.DefaultOptions(), 5, Pass{Height: 64, Width: 64, Steps: 1})
		if err != nil {
			t.Fatal(err)
		}
		return results
	}

	a, b := run(), run()
	if len(a[0].UNetModules) != 0 || len(a[0].VAEModules) != 0 {
		t.Errorf("Module abgefangen, obwohl deaktiviert: %v %v", a[0].UNetModules, a[0].VAEModules)
	}
	if !a[0].Image.Equal(b[0].Image) {
		t.Error("gleicher Seed, verschiedene Bilder")
	}
}

func TestGenerateHalfPrecision(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HalfPrecision = true

	half, err := New(hypertile.BackendOriginal, cfg)
	if err != nil {
		t.Fatal(err)
	}

	results, err := half.Generate(context.Background(), newJob(), tilingOptions(), 1, Pass{Height: 64, Width: 64, Steps: 1})
	if err != nil {
		t.Fatal(err)
	}

	img := results[0].Image
	if img.DType() != ml.DTypeF16 {
		t.Errorf("DType = %v, erwartet f16", img.DType())
	}
	// schon gerundete Werte aendern sich beim erneuten Runden nicht
	if !img.Half().Equal(img) {
		t.Error("Bild enthaelt Werte ausserhalb von float16")
	}

	latent, err := half.NewLatent(64, 64, 1)
	if err != nil {
		t.Fatal(err)
	}
	if latent.DType() != ml.DTypeF16 {
		t.Errorf("Latent DType = %v, erwartet f16", latent.DType())
	}

	full := newModel(t, hypertile.BackendOriginal)
	exact, err := full.NewLatent(64, 64, 1)
	if err != nil {
		t.Fatal(err)
	}
	if exact.Equal(latent) {
		t.Error("Latent wurde nicht gerundet")
	}
}

func TestGenerateCancelled(t *testing.T) {
	m := newModel(t, hypertile.BackendDiffusers)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Generate(ctx, newJob(), tilingOptions(), 1, Pass{Height: 64, Width: 64, Steps: 3})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, erwartet context.Canceled", err)
	}
	if got := installed(m); len(got) != 0 {
		t.Errorf("nach Abbruch noch abgefangen: %v", got)
	}
}

func TestGenerateInvalidSize(t *testing.T) {
	m := newModel(t, hypertile.BackendDiffusers)

	_, err := m.Generate(context.Background(), newJob(), tilingOptions(), 1, Pass{Height: 60, Width: 64, Steps: 1})
	if !errors.Is(err, ErrInvalidSize) {
		t.Errorf("err = %v, erwartet ErrInvalidSize", err)
	}
}
