// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs, loadOptions
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/7blacky7/hypertile/envconfig"
	"github.com/7blacky7/hypertile/hypertile"
	"github.com/7blacky7/hypertile/logutil"
)

// version wird beim Build per -ldflags gesetzt
var version = "0.0.0"

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-30s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// envDocs - Waehlt Variablen aus AsMap in der angegebenen Reihenfolge
func envDocs(keys ...string) []envconfig.EnvVar {
	all := envconfig.AsMap()

	var envs []envconfig.EnvVar
	for _, k := range keys {
		if v, ok := all.Get(k); ok {
			envs = append(envs, v)
		}
	}
	return envs
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "hypertile",
		Short:         "Tiled self-attention for diffusion networks",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			files, _ := cmd.Flags().GetStringSlice("env-file")
			if err := envconfig.LoadDotEnv(files...); err != nil {
				return err
			}

			// Level erst nach dem Laden der .env-Dateien lesen
			slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "hypertile version %s\n", version)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
	rootCmd.PersistentFlags().StringSlice("env-file", nil, "Load environment variables from .env files (default ./.env)")

	tilesCmd := newTilesCmd()
	simulateCmd := newSimulateCmd()
	listCmd := newListCmd()
	envCmd := newEnvCmd()

	for _, cmd := range []*cobra.Command{tilesCmd, simulateCmd, listCmd, envCmd} {
		switch cmd {
		case simulateCmd:
			appendEnvDocs(cmd, envDocs(
				"HYPERTILE_DEBUG",
				"HYPERTILE_OPTIONS",
				"HYPERTILE_VAE_ENABLED",
				"HYPERTILE_UNET_ENABLED",
				"HYPERTILE_VAE_TILE",
				"HYPERTILE_UNET_TILE",
				"HYPERTILE_MIN_TILE",
				"HYPERTILE_SWAP_SIZE",
				"HYPERTILE_DEPTH",
				"HYPERTILE_SEED",
			))
		case listCmd:
			appendEnvDocs(cmd, envDocs("HYPERTILE_DEBUG", "HYPERTILE_LIST_HIDDEN_FILES", "HYPERTILE_PRELOAD_CONCURRENCY"))
		default:
			appendEnvDocs(cmd, envDocs("HYPERTILE_DEBUG"))
		}
	}

	rootCmd.AddCommand(
		tilesCmd,
		simulateCmd,
		listCmd,
		envCmd,
	)

	return rootCmd
}

// addOptionFlags - Registriert die Kachel-Optionen als Flags
func addOptionFlags(cmd *cobra.Command) {
	d := hypertile.DefaultOptions()
	cmd.Flags().String("options", "", "YAML options file (default $HYPERTILE_OPTIONS)")
	cmd.Flags().Bool("vae", d.VAEEnabled, "Tile self-attention in the VAE")
	cmd.Flags().Bool("unet", d.UNetEnabled, "Tile self-attention in the UNet")
	cmd.Flags().Int("vae-tile", d.VAETile, "Target VAE tile size in pixels")
	cmd.Flags().Int("unet-tile", d.UNetTile, "Target UNet tile size in pixels")
	cmd.Flags().Int("min-tile", d.MinTile, "Minimum tile size in pixels")
	cmd.Flags().Int("swap-size", d.SwapSize, "Number of tile grid candidates per dimension")
	cmd.Flags().Int("depth", d.Depth, "Deepest UNet stage that is tiled")
	cmd.Flags().Uint64("seed", d.Seed, "Seed for tile grid selection (0 = random)")
}

// loadOptions - Defaults < YAML-Datei < Environment < Flags
func loadOptions(cmd *cobra.Command) (hypertile.Options, error) {
	path, _ := cmd.Flags().GetString("options")
	if path == "" {
		path = envconfig.OptionsFile()
	}

	o, err := hypertile.LoadOptions(path)
	if err != nil {
		return o, err
	}
	o = hypertile.OptionsFromEnv(o)

	flags := cmd.Flags()
	if flags.Changed("vae") {
		o.VAEEnabled, _ = flags.GetBool("vae")
	}
	if flags.Changed("unet") {
		o.UNetEnabled, _ = flags.GetBool("unet")
	}
	for name, dst := range map[string]*int{
		"vae-tile":  &o.VAETile,
		"unet-tile": &o.UNetTile,
		"min-tile":  &o.MinTile,
		"swap-size": &o.SwapSize,
		"depth":     &o.Depth,
	} {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	if flags.Changed("seed") {
		o.Seed, _ = flags.GetUint64("seed")
	}

	return o, o.Validate()
}
