// cmd_display.go - Tabellen und Terminal-Ausgabe
// Hauptfunktionen: newTable, termWidth, truncateColumn
package cmd

import (
	"io"
	"os"

	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"
)

// newTable - Tabelle ohne Rahmen, linksbuendig
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// termWidth - Breite des Terminals, 120 wenn stdout kein Terminal ist
func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 120
}

// truncateColumn - Kuerzt s von links auf width Zellen (Pfade enden wichtig)
func truncateColumn(s string, width int) string {
	if width <= 3 || runewidth.StringWidth(s) <= width {
		return s
	}

	// vom Ende her so viele Runen behalten, wie hineinpassen
	runes := []rune(s)
	keep := 0
	for i := len(runes) - 1; i >= 0; i-- {
		if runewidth.StringWidth(string(runes[i:])) > width-3 {
			break
		}
		keep = len(runes) - i
	}
	return "..." + string(runes[len(runes)-keep:])
}
