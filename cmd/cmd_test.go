// cmd_test.go - Tests fuer die CLI-Commands
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/7blacky7/hypertile/hypertile"
)

// run fuehrt die CLI mit args aus und gibt stdout zurueck
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// keine .env aus dem Arbeitsverzeichnis und keine Optionsdatei des Nutzers
	t.Setenv("HYPERTILE_OPTIONS", filepath.Join(t.TempDir(), "none.yaml"))
	args = append(args, "--env-file", filepath.Join(t.TempDir(), "none.env"))

	var out bytes.Buffer
	root := NewCLI()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTilesCommand(t *testing.T) {
	out, err := run(t, "tiles", "512", "--tile-size", "256", "--min-tile", "256", "--candidates", "1")
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("%d Zeilen, erwartet Kopf und eine Zeile:\n%s", len(lines), out)
	}
	if diff := cmp.Diff([]string{"512", "1", "2", "256", "0"}, strings.Fields(lines[1])); diff != "" {
		t.Errorf("Zeile (-want +got):\n%s", diff)
	}

	if _, err := run(t, "tiles", "abc"); err == nil {
		t.Error("kein Fehler fuer ungueltige Dimension")
	}
	if _, err := run(t, "tiles", "512", "--candidates", "0"); err == nil {
		t.Error("kein Fehler fuer 0 Kandidaten")
	}
}

func TestEnvCommand(t *testing.T) {
	t.Setenv("HYPERTILE_UNET_TILE", "384")

	out, err := run(t, "env")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"HYPERTILE_DEBUG", "HYPERTILE_UNET_TILE", "384"} {
		if !strings.Contains(out, want) {
			t.Errorf("%q fehlt in:\n%s", want, out)
		}
	}
	if strings.Index(out, "HYPERTILE_DEBUG") > strings.Index(out, "HYPERTILE_SEED") {
		t.Error("Variablen nicht in Dokumentations-Reihenfolge")
	}
}

func TestListCommand(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b10.ckpt", "b2.ckpt", "sub/c.safetensors"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := run(t, "ls", dir)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Index(out, "b2.ckpt") > strings.Index(out, "b10.ckpt") || strings.Contains(out, "c.safetensors") {
		t.Errorf("unerwartete Ausgabe:\n%s", out)
	}

	out, err = run(t, "ls", "-r", "--ext", ".safetensors", dir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "c.safetensors") || strings.Contains(out, "b2.ckpt") {
		t.Errorf("unerwartete Ausgabe:\n%s", out)
	}
}

func TestSimulateCommand(t *testing.T) {
	out, err := run(t, "simulate",
		"--height", "64", "--width", "64", "--steps", "1", "--hires-scale", "2",
		"--unet", "--vae", "--unet-tile", "32", "--vae-tile", "32", "--min-tile", "8", "--seed", "1")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"down_blocks.0.attn1", "decoder.mid_block.attentions.0", "split", "pass 2: 128x128"} {
		if !strings.Contains(out, want) {
			t.Errorf("%q fehlt in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "attn2") {
		t.Errorf("Cross-Attention wurde abgefangen:\n%s", out)
	}

	out, err = run(t, "simulate", "--height", "64", "--width", "64", "--steps", "1", "--hires-scale", "1", "--dump", "--f16")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "[[[[") || !strings.Contains(out, "...") || !strings.Contains(out, "image f16[") {
		t.Errorf("Dump fehlt in:\n%s", out)
	}

	if _, err := run(t, "simulate", "--backend", "onnx"); err == nil {
		t.Error("kein Fehler fuer unbekanntes Backend")
	}
}

func TestLoadOptionsPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	data := "hypertile_unet_enabled: true\nhypertile_unet_tile: 512\nhypertile_depth: 1\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HYPERTILE_UNET_TILE", "384")
	t.Setenv("HYPERTILE_DEPTH", "2")

	cmd := newSimulateCmd()
	if err := cmd.ParseFlags([]string{"--options", path, "--depth", "3"}); err != nil {
		t.Fatal(err)
	}

	got, err := loadOptions(cmd)
	if err != nil {
		t.Fatal(err)
	}

	want := hypertile.DefaultOptions()
	// YAML < Environment < Flags
	want.UNetEnabled, want.UNetTile, want.Depth = true, 384, 3
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTruncateColumn(t *testing.T) {
	if got := truncateColumn("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateColumn("models/checkpoints/model.safetensors", 20); got != "...model.safetensors" {
		t.Errorf("got %q", got)
	}
}
