// cmd_list.go - List und Env Commands
// Hauptfunktionen: ListHandler, EnvHandler
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/7blacky7/hypertile/envconfig"
	"github.com/7blacky7/hypertile/fscache"
)

// ListHandler - Listet Dateien mit mtime/ctime aus dem Metadaten-Cache
func ListHandler(cmd *cobra.Command, args []string) error {
	recursive, _ := cmd.Flags().GetBool("recursive")
	exts, _ := cmd.Flags().GetStringSlice("ext")

	var files []string
	for _, dir := range args {
		var found []string
		var err error
		if recursive {
			found, err = fscache.WalkFiles(dir, exts, envconfig.ListHiddenFiles())
		} else {
			found, err = fscache.ListFiles(dir)
		}
		if err != nil {
			return err
		}
		files = append(files, found...)
	}

	lister := fscache.NewLister(slog.Default())

	// alle beteiligten Verzeichnisse vorab parallel einlesen
	dirs := make(map[string]struct{})
	for _, f := range files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	preload := make([]string, 0, len(dirs))
	for d := range dirs {
		preload = append(preload, d)
	}
	if err := lister.Preload(cmd.Context(), preload...); err != nil {
		return err
	}

	width := max(termWidth()-60, 20)

	var data [][]string
	for _, f := range files {
		mtime, ctime := lister.MCTime(f)
		data = append(data, []string{
			truncateColumn(fscache.TruncatePath(f, ""), width),
			formatTime(mtime),
			formatTime(ctime),
		})
	}

	table := newTable(cmd.OutOrStdout(), "NAME", "MODIFIED", "CHANGED")
	table.AppendBulk(data)
	table.Render()

	return nil
}

// EnvHandler - Zeigt alle Konfigurations-Variablen mit aktuellem Wert
func EnvHandler(cmd *cobra.Command, args []string) error {
	var data [][]string
	for pair := envconfig.AsMap().Oldest(); pair != nil; pair = pair.Next() {
		data = append(data, []string{pair.Key, fmt.Sprintf("%v", pair.Value.Value), pair.Value.Description})
	}

	table := newTable(cmd.OutOrStdout(), "NAME", "VALUE", "DESCRIPTION")
	table.AppendBulk(data)
	table.Render()

	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

// newListCmd - Erstellt den ls Command
func newListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:     "ls DIR...",
		Aliases: []string{"list"},
		Short:   "List files with cached modification and change times",
		Args:    cobra.MinimumNArgs(1),
		RunE:    ListHandler,
	}

	listCmd.Flags().BoolP("recursive", "r", false, "Walk directories recursively (follows symlinks)")
	listCmd.Flags().StringSlice("ext", nil, "Only list files with these extensions when walking (e.g. .safetensors)")

	return listCmd
}

// newEnvCmd - Erstellt den env Command
func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show configuration from the environment",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}
}
