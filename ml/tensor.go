// Package ml - Tensor-Typ
//
// Dieses Modul enthaelt den dichten Tensor, auf dem Attention-Module und
// das Kachel-Rearrangement arbeiten. Gespeichert wird in pdevine/tensor;
// Reshape und Permute liefern immer neue Tensoren, der Eingang bleibt
// unveraendert.
package ml

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pdevine/tensor"
	"github.com/x448/float16"
)

// ErrShape wird bei unpassenden Formen zurueckgegeben
var ErrShape = errors.New("shape mismatch")

// Tensor ist ein dichter Float32-Tensor mit beliebigem Rang
type Tensor struct {
	d *tensor.Dense
	// dtype merkt sich den Quelltyp (F16-Daten liegen intern als F32)
	dtype DType
}

// =============================================================================
// Konstruktoren
// =============================================================================

// FromFloats erzeugt einen Tensor aus data mit der Form shape.
// Die Anzahl der Elemente muss zur Form passen, sonst panic.
func FromFloats(data []float32, shape ...int) *Tensor {
	if n := elements(shape); n != len(data) {
		panic(fmt.Sprintf("ml: %d values do not fit shape %v (%d elements)", len(data), shape, n))
	}

	backing := slices.Clone(data)
	return &Tensor{
		d:     tensor.New(tensor.WithShape(slices.Clone(shape)...), tensor.WithBacking(backing)),
		dtype: DTypeF32,
	}
}

// FromFloat16 erzeugt einen Tensor aus IEEE-754 Half-Bits (z.B. aus safetensors)
func FromFloat16(bits []uint16, shape ...int) *Tensor {
	f32s := make([]float32, len(bits))
	for i, b := range bits {
		f32s[i] = float16.Frombits(b).Float32()
	}

	t := FromFloats(f32s, shape...)
	t.dtype = DTypeF16
	return t
}

// Zeros erzeugt einen mit Nullen gefuellten Tensor
func Zeros(shape ...int) *Tensor {
	return &Tensor{
		d:     tensor.New(tensor.Of(storage), tensor.WithShape(slices.Clone(shape)...)),
		dtype: DTypeF32,
	}
}

// Arange erzeugt einen Tensor mit den Werten 0, 1, 2, ... in der Form shape
func Arange(shape ...int) *Tensor {
	data := make([]float32, elements(shape))
	for i := range data {
		data[i] = float32(i)
	}
	return FromFloats(data, shape...)
}

// =============================================================================
// Abfragen
// =============================================================================

// Shape gibt eine Kopie der Form zurueck
func (t *Tensor) Shape() []int {
	return slices.Clone([]int(t.d.Shape()))
}

// Rank gibt die Anzahl der Dimensionen zurueck
func (t *Tensor) Rank() int {
	return t.d.Dims()
}

// Dim gibt die Groesse der Dimension n zurueck; negative n zaehlen von hinten
func (t *Tensor) Dim(n int) int {
	shape := t.d.Shape()
	if n < 0 {
		n += len(shape)
	}
	return shape[n]
}

// Len gibt die Gesamtzahl der Elemente zurueck
func (t *Tensor) Len() int {
	return t.d.DataSize()
}

// DType gibt den Quelltyp des Tensors zurueck
func (t *Tensor) DType() DType {
	return t.dtype
}

// Floats gibt eine Kopie der Werte in Row-Major-Reihenfolge zurueck
func (t *Tensor) Floats() []float32 {
	return slices.Clone(t.values())
}

// Float16s gibt die Werte als Half-Bits zurueck
func (t *Tensor) Float16s() []uint16 {
	f32s := t.values()
	bits := make([]uint16, len(f32s))
	for i, f := range f32s {
		bits[i] = float16.Fromfloat32(f).Bits()
	}
	return bits
}

// Half rundet alle Werte auf Half-Precision und gibt einen F16-Tensor zurueck
func (t *Tensor) Half() *Tensor {
	return FromFloat16(t.Float16s(), t.Shape()...)
}

// Equal prueft Form und Werte auf exakte Gleichheit
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	return slices.Equal(t.Shape(), o.Shape()) && slices.Equal(t.values(), o.values())
}

// String liefert eine kurze Beschreibung fuer Logs
func (t *Tensor) String() string {
	dims := make([]string, 0, t.Rank())
	for _, d := range t.Shape() {
		dims = append(dims, fmt.Sprint(d))
	}
	return fmt.Sprintf("%s[%s]", t.dtype, strings.Join(dims, " "))
}

// =============================================================================
// Formoperationen
// =============================================================================

// Reshape gibt einen neuen Tensor mit gleicher Elementfolge und Form shape zurueck
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if elements(shape) != t.Len() {
		return nil, fmt.Errorf("%w: cannot reshape %v into %v", ErrShape, t.Shape(), shape)
	}

	c := t.clone()
	if err := c.d.Reshape(shape...); err != nil {
		return nil, fmt.Errorf("reshape %v: %w", shape, err)
	}
	return c, nil
}

// Permute vertauscht die Achsen gemaess axes und materialisiert das Ergebnis
func (t *Tensor) Permute(axes ...int) (*Tensor, error) {
	if len(axes) != t.Rank() {
		return nil, fmt.Errorf("%w: permute %v on rank %d", ErrShape, axes, t.Rank())
	}

	c := t.clone()
	if isIdentity(axes) {
		return c, nil
	}
	if err := c.d.T(axes...); err != nil {
		return nil, fmt.Errorf("permute %v: %w", axes, err)
	}
	// T ist nur eine View, Transpose verschiebt die Daten tatsaechlich
	if err := c.d.Transpose(); err != nil {
		return nil, fmt.Errorf("permute %v: %w", axes, err)
	}
	return c, nil
}

// Clone gibt eine tiefe Kopie zurueck
func (t *Tensor) Clone() *Tensor {
	return t.clone()
}

func (t *Tensor) clone() *Tensor {
	return &Tensor{d: t.d.Clone().(*tensor.Dense), dtype: t.dtype}
}

// values gibt die Backing-Daten ohne Kopie zurueck.
// Tensoren mit einem Element liefert Data() als Skalar.
func (t *Tensor) values() []float32 {
	switch v := t.d.Data().(type) {
	case []float32:
		return v
	case float32:
		return []float32{v}
	default:
		panic(fmt.Sprintf("ml: unexpected backing %T", v))
	}
}

func isIdentity(axes []int) bool {
	for i, a := range axes {
		if a != i {
			return false
		}
	}
	return true
}

func elements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
