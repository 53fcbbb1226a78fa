// cmd_tiles.go - Tiles Command
// Hauptfunktionen: TilesHandler
package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/7blacky7/hypertile/hypertile"
)

// TilesHandler - Zeigt die Kachel-Kandidaten fuer jede angegebene Dimension
func TilesHandler(cmd *cobra.Command, args []string) error {
	tileSize, _ := cmd.Flags().GetInt("tile-size")
	minTile, _ := cmd.Flags().GetInt("min-tile")
	candidates, _ := cmd.Flags().GetInt("candidates")

	var data [][]string
	for _, arg := range args {
		dimension, err := strconv.Atoi(arg)
		if err != nil || dimension <= 0 {
			return fmt.Errorf("invalid dimension %q", arg)
		}

		ns, err := hypertile.PossibleTileSizes(dimension, tileSize, minTile, candidates)
		if err != nil {
			return err
		}

		if len(ns) == 0 {
			data = append(data, []string{arg, "-", "1", strconv.Itoa(dimension), "no split possible"})
			continue
		}
		for i, n := range ns {
			edge := dimension / n
			data = append(data, []string{
				arg,
				strconv.Itoa(i + 1),
				strconv.Itoa(n),
				strconv.Itoa(edge),
				strconv.Itoa(abs(edge - tileSize)),
			})
		}
	}

	table := newTable(cmd.OutOrStdout(), "DIMENSION", "RANK", "TILES", "EDGE", "DISTANCE")
	table.AppendBulk(data)
	table.Render()

	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// newTilesCmd - Erstellt den tiles Command
func newTilesCmd() *cobra.Command {
	tilesCmd := &cobra.Command{
		Use:   "tiles DIMENSION...",
		Short: "Show tile count candidates for image dimensions",
		Args:  cobra.MinimumNArgs(1),
		RunE:  TilesHandler,
	}

	tilesCmd.Flags().Int("tile-size", 256, "Target tile size in pixels")
	tilesCmd.Flags().Int("min-tile", 256, "Minimum tile size in pixels")
	tilesCmd.Flags().Int("candidates", 3, "Number of candidates per dimension")

	return tilesCmd
}
