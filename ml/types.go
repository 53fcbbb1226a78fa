// types.go - Datentypen fuer Tensoren
// Dieses Modul definiert DType und die Zuordnung zu pdevine/tensor.
package ml

import (
	"fmt"

	"github.com/pdevine/tensor"
)

// DType represents the data type of tensor elements.
type DType int

const (
	DTypeOther DType = iota
	DTypeF32
	DTypeF16
)

// String liefert den ueblichen Kurznamen des Typs
func (d DType) String() string {
	switch d {
	case DTypeF32:
		return "f32"
	case DTypeF16:
		return "f16"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// storage ist der Element-Typ, mit dem Tensoren intern gehalten werden.
// F16-Daten werden beim Import nach F32 erweitert.
var storage = tensor.Float32
