// host.go - Anbindung an den Generierungs-Host
//
// Dieses Modul enthaelt:
// - Backend/ModelHolder: Zugriff auf VAE und UNet im Host-Modell
// - Request: Dimensionen und Modell einer Generierungs-Anfrage
// - ContextVAE/ContextUNet: Job initialisieren und Scope oeffnen
// - SetPass: naechsten Pass eines mehrstufigen Laufs ankuendigen
package hypertile

import (
	"fmt"
	"log/slog"

	"github.com/7blacky7/hypertile/ml/nn"
)

// Backend bestimmt, unter welchen Namen VAE und UNet im Modell haengen
type Backend int

const (
	// BackendOriginal: first_stage_model und model.diffusion_model
	BackendOriginal Backend = iota
	// BackendDiffusers: vae und unet
	BackendDiffusers
)

func (b Backend) String() string {
	switch b {
	case BackendOriginal:
		return "original"
	case BackendDiffusers:
		return "diffusers"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// vaeName und unetName sind die Komponenten-Namen je Backend
func (b Backend) vaeName() string {
	if b == BackendDiffusers {
		return "vae"
	}
	return "first_stage_model"
}

func (b Backend) unetName() string {
	if b == BackendDiffusers {
		return "unet"
	}
	return "model.diffusion_model"
}

// ModelHolder ist das geladene Modell des Hosts
type ModelHolder interface {
	Backend() Backend

	// Component gibt das Modul unter name zurueck oder nil
	Component(name string) nn.Module
}

// Request ist die Generierungs-Anfrage des Hosts (nur lesend)
type Request struct {
	Height, Width int
	Model         ModelHolder
}

// ContextVAE initialisiert job fuer die VAE-Stufe und oeffnet einen Scope auf
// dem VAE. Ist die Option aus oder fehlt der VAE, kommt ein NopScope zurueck.
func ContextVAE(job *Job, req Request, opts Options, logger *slog.Logger) (*Scope, error) {
	return contextFor(job, req, opts, logger, "vae", opts.VAEEnabled, opts.VAETile, Backend.vaeName)
}

// ContextUNet initialisiert job fuer die UNet-Stufe und oeffnet einen Scope auf
// dem UNet. Ist die Option aus oder fehlt das UNet, kommt ein NopScope zurueck.
func ContextUNet(job *Job, req Request, opts Options, logger *slog.Logger) (*Scope, error) {
	return contextFor(job, req, opts, logger, "unet", opts.UNetEnabled, opts.UNetTile, Backend.unetName)
}

// SetPass kuendigt einen neuen Pass an (z.B. vor dem Hires-Pass)
func SetPass(job *Job, req Request) {
	job.MarkNewPass(req.Height, req.Width)
}

func contextFor(job *Job, req Request, opts Options, logger *slog.Logger, stage string, enabled bool, tile int, component func(Backend) string) (*Scope, error) {
	if logger == nil {
		logger = job.Logger()
	}

	job.Begin(req.Height, req.Width)
	if req.Model == nil || !enabled {
		return NopScope(nil), nil
	}

	name := component(req.Model.Backend())
	target := req.Model.Component(name)
	if target == nil {
		logger.Warn("hypertile is enabled but no model was found", "stage", stage, "component", name, "backend", req.Model.Backend())
		return NopScope(fmt.Errorf("%w: %s", ErrNoTarget, name)), nil
	}

	logger.Info("applying hypertile", stage, tile)
	return SplitAttention(target, job, opts.tileOptions(tile))
}
