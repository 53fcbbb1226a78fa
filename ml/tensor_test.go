// tensor_test.go - Tests fuer Tensor-Konstruktion und Formoperationen
package ml

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFromFloats(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	x := FromFloats(data, 2, 3)

	if diff := cmp.Diff([]int{2, 3}, x.Shape()); diff != "" {
		t.Errorf("Form falsch (-want +got):\n%s", diff)
	}
	if x.Rank() != 2 || x.Len() != 6 || x.Dim(-1) != 3 {
		t.Errorf("Rank/Len/Dim = %d/%d/%d", x.Rank(), x.Len(), x.Dim(-1))
	}

	// Eingangsdaten werden kopiert
	data[0] = 100
	if x.Floats()[0] != 1 {
		t.Error("FromFloats teilt den Speicher mit dem Aufrufer")
	}
}

func TestFromFloatsPanicsOnMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("erwartet panic bei falscher Elementzahl")
		}
	}()
	FromFloats([]float32{1, 2, 3}, 2, 2)
}

func TestFloat16RoundTrip(t *testing.T) {
	x := FromFloats([]float32{0.5, -2, 1024, 0}, 4)
	y := FromFloat16(x.Float16s(), 4)

	if y.DType() != DTypeF16 {
		t.Errorf("DType = %s, erwartet f16", y.DType())
	}
	if diff := cmp.Diff(x.Floats(), y.Floats()); diff != "" {
		t.Errorf("Werte nach f16 round trip (-want +got):\n%s", diff)
	}
}

func TestHalf(t *testing.T) {
	x := FromFloats([]float32{0.5, 1.0 / 3, 70000}, 3)
	y := x.Half()

	if y.DType() != DTypeF16 || x.DType() != DTypeF32 {
		t.Errorf("DType = %s/%s, erwartet f32/f16", x.DType(), y.DType())
	}
	got := y.Floats()
	if got[0] != 0.5 {
		t.Errorf("0.5 = %v nach Runden", got[0])
	}
	if got[1] == 1.0/3 || got[1] < 0.333 || got[1] > 0.334 {
		t.Errorf("1/3 = %v, erwartet gerundet auf float16", got[1])
	}
	// ausserhalb des float16-Bereichs
	if !math.IsInf(float64(got[2]), 1) {
		t.Errorf("70000 = %v, erwartet +Inf", got[2])
	}
}

func TestReshape(t *testing.T) {
	x := Arange(2, 3, 4)

	y, err := x.Reshape(6, 4)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{6, 4}, y.Shape()); diff != "" {
		t.Errorf("Form falsch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(x.Floats(), y.Floats()); diff != "" {
		t.Errorf("Reshape darf die Reihenfolge nicht aendern (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 3, 4}, x.Shape()); diff != "" {
		t.Errorf("Eingang veraendert (-want +got):\n%s", diff)
	}

	if _, err := x.Reshape(5, 5); !errors.Is(err, ErrShape) {
		t.Errorf("err = %v, erwartet ErrShape", err)
	}
}

func TestPermute(t *testing.T) {
	// [[0 1 2] [3 4 5]] transponiert
	x := Arange(2, 3)
	y, err := x.Permute(1, 0)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]int{3, 2}, y.Shape()); diff != "" {
		t.Errorf("Form falsch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{0, 3, 1, 4, 2, 5}, y.Floats()); diff != "" {
		t.Errorf("Werte falsch (-want +got):\n%s", diff)
	}

	z, err := x.Permute(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !z.Equal(x) {
		t.Error("Identitaets-Permutation muss den Tensor unveraendert lassen")
	}

	if _, err := x.Permute(0); !errors.Is(err, ErrShape) {
		t.Errorf("err = %v, erwartet ErrShape", err)
	}
}

func TestPermuteRank6(t *testing.T) {
	x := Arange(1, 2, 2, 3, 2, 1)
	y, err := x.Permute(0, 2, 4, 1, 3, 5)
	if err != nil {
		t.Fatal(err)
	}
	back, err := y.Permute(0, 3, 1, 4, 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(x) {
		t.Error("Permutation und Inverse muessen den Tensor wiederherstellen")
	}
}

func TestZeros(t *testing.T) {
	x := Zeros(2, 2)
	for _, v := range x.Floats() {
		if v != 0 {
			t.Fatalf("Zeros enthaelt %v", v)
		}
	}
	if x.String() != "f32[2 2]" {
		t.Errorf("String() = %q", x.String())
	}
}
