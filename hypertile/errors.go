// errors.go - Fehler des Kachel-Mechanismus
package hypertile

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration signalisiert einen Programmierfehler (z.B. tileOptions < 1)
	ErrConfiguration = errors.New("hypertile: invalid configuration")

	// ErrPartition signalisiert, dass ein Tensor nicht in das Kachelraster passt
	ErrPartition = errors.New("hypertile: partition failed")

	// ErrNoTarget signalisiert, dass das Netzwerk-Modul im Host-Modell fehlt
	ErrNoTarget = errors.New("hypertile: target module not found")
)

// PartitionError beschreibt eine fehlgeschlagene Aufteilung oder Zusammenfuehrung
type PartitionError struct {
	Shape  []int
	NH, NW int
	Err    error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("hypertile: cannot tile %v into %dx%d: %v", e.Shape, e.NH, e.NW, e.Err)
}

// Is laesst errors.Is(err, ErrPartition) fuer alle PartitionErrors zutreffen
func (e *PartitionError) Is(target error) bool {
	return target == ErrPartition
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}
