// cmd_simulate.go - Simulate Command
// Hauptfunktionen: SimulateHandler, decisionLog
package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/7blacky7/hypertile/hypertile"
	"github.com/7blacky7/hypertile/ml"
	"github.com/7blacky7/hypertile/model"
)

// decisionLog - Zaehlt gleiche Kachel-Entscheidungen in Reihenfolge ihres ersten Auftretens
type decisionLog struct {
	mu     sync.Mutex
	pass   int
	counts *orderedmap.OrderedMap[string, *decisionRow]
}

type decisionRow struct {
	pass     int
	decision hypertile.Decision
	calls    int
}

func newDecisionLog() *decisionLog {
	return &decisionLog{counts: orderedmap.New[string, *decisionRow]()}
}

func (l *decisionLog) observe(d hypertile.Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := fmt.Sprintf("%d/%+v", l.pass, d)
	if row, ok := l.counts.Get(key); ok {
		row.calls++
		return
	}
	l.counts.Set(key, &decisionRow{pass: l.pass, decision: d, calls: 1})
}

func (l *decisionLog) setPass(pass int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pass = pass
}

func (l *decisionLog) rows() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var data [][]string
	for pair := l.counts.Oldest(); pair != nil; pair = pair.Next() {
		r := pair.Value
		d := r.decision

		result := "-"
		switch {
		case d.Fallback:
			result = "fallback"
		case d.Split:
			result = "split"
		}

		data = append(data, []string{
			strconv.Itoa(r.pass + 1),
			d.Module,
			strconv.Itoa(d.Rank),
			fmt.Sprintf("%dx%d", d.W, d.H),
			fmt.Sprintf("%dx%d", d.NW, d.NH),
			strconv.Itoa(d.Depth),
			result,
			strconv.Itoa(r.calls),
		})
	}
	return data
}

// parseBackend - Wandelt den Flag-Wert in ein Backend
func parseBackend(s string) (hypertile.Backend, error) {
	switch strings.ToLower(s) {
	case "original", "ldm":
		return hypertile.BackendOriginal, nil
	case "diffusers":
		return hypertile.BackendDiffusers, nil
	}
	return 0, fmt.Errorf("unknown backend %q (want original or diffusers)", s)
}

// SimulateHandler - Fuehrt Basis- und Hires-Pass auf dem Referenzmodell aus
// und zeigt alle Kachel-Entscheidungen
func SimulateHandler(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}

	backendName, _ := cmd.Flags().GetString("backend")
	backend, err := parseBackend(backendName)
	if err != nil {
		return err
	}

	height, _ := cmd.Flags().GetInt("height")
	width, _ := cmd.Flags().GetInt("width")
	steps, _ := cmd.Flags().GetInt("steps")
	scale, _ := cmd.Flags().GetInt("hires-scale")
	dump, _ := cmd.Flags().GetBool("dump")

	cfg := model.DefaultConfig()
	cfg.HalfPrecision, _ = cmd.Flags().GetBool("f16")

	m, err := model.New(backend, cfg)
	if err != nil {
		return err
	}

	passes := []model.Pass{{Height: height, Width: width, Steps: steps}}
	if scale > 1 {
		passes = append(passes, model.Pass{Height: height * scale, Width: width * scale, Steps: steps})
	}

	decisions := newDecisionLog()
	jobOpts := []hypertile.JobOption{
		hypertile.WithLogger(slog.Default()),
		hypertile.WithObserver(decisions.observe),
	}
	if opts.Seed != 0 {
		jobOpts = append(jobOpts, hypertile.WithSeed(opts.Seed))
	}
	job := hypertile.NewJob(jobOpts...)

	seed := cfg.Seed
	var results []model.Result
	for i, pass := range passes {
		decisions.setPass(i)

		res, err := m.RunPass(cmd.Context(), job, opts, i, pass, seed+uint64(i))
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "job %s (%s backend)\n\n", job.ID, backend)

	table := newTable(w, "PASS", "MODULE", "RANK", "SIZE", "GRID", "DEPTH", "RESULT", "CALLS")
	table.AppendBulk(decisions.rows())
	table.Render()

	fmt.Fprintln(w)
	for i, res := range results {
		fmt.Fprintf(w, "pass %d: %dx%d, %d unet modules, %d vae modules, image %v\n",
			i+1, res.Pass.Width, res.Pass.Height, len(res.UNetModules), len(res.VAEModules), res.Image)
		if dump {
			fmt.Fprintln(w, ml.Dump(res.Image, ml.DumpWithEdgeItems(2)))
		}
	}

	return nil
}

// newSimulateCmd - Erstellt den simulate Command
func newSimulateCmd() *cobra.Command {
	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a base and a hires pass on a reference model and show tiling decisions",
		Args:  cobra.NoArgs,
		RunE:  SimulateHandler,
	}

	simulateCmd.Flags().String("backend", "diffusers", "Module naming convention (original or diffusers)")
	simulateCmd.Flags().Int("height", 256, "Image height of the base pass in pixels")
	simulateCmd.Flags().Int("width", 256, "Image width of the base pass in pixels")
	simulateCmd.Flags().Int("steps", 2, "Denoising steps per pass")
	simulateCmd.Flags().Int("hires-scale", 2, "Scale of the hires pass (0 or 1 disables it)")
	simulateCmd.Flags().Bool("f16", false, "Round weights and activations to half precision")
	simulateCmd.Flags().Bool("dump", false, "Print the decoded output of every pass")
	addOptionFlags(simulateCmd)

	return simulateCmd
}
