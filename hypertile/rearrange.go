// rearrange.go - Aufteilen und Zusammenfuehren von Kacheln
//
// Raeumliche Tensoren [B, C, H, W]:
//
//	b c (nh h) (nw w) -> (b nh nw) c h w
//
// Sequenzen [B, H*W, C]:
//
//	b (nh h nw w) c -> (b nh nw) (h w) c
//
// Die Merge-Funktionen sind jeweils die exakte Umkehrung.
package hypertile

import (
	"fmt"

	"github.com/7blacky7/hypertile/ml"
)

// SplitSpatial faltet ein nh x nw Raster in die Batch-Dimension
func SplitSpatial(x *ml.Tensor, nh, nw int) (*ml.Tensor, error) {
	if x.Rank() != 4 {
		return nil, partitionErr(x, nh, nw, fmt.Errorf("%w: expected rank 4", ml.ErrShape))
	}

	b, c, H, W := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	if err := divisible(H, W, nh, nw); err != nil {
		return nil, partitionErr(x, nh, nw, err)
	}
	h, w := H/nh, W/nw

	return rearrange(x, nh, nw,
		[]int{b, c, nh, h, nw, w},
		[]int{0, 2, 4, 1, 3, 5},
		[]int{b * nh * nw, c, h, w})
}

// MergeSpatial setzt die Kacheln aus SplitSpatial wieder zu [B, C, H, W] zusammen
func MergeSpatial(x *ml.Tensor, nh, nw int) (*ml.Tensor, error) {
	if x.Rank() != 4 {
		return nil, partitionErr(x, nh, nw, fmt.Errorf("%w: expected rank 4", ml.ErrShape))
	}

	bt, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	if nh < 1 || nw < 1 || bt%(nh*nw) != 0 {
		return nil, partitionErr(x, nh, nw, fmt.Errorf("%w: batch %d is not a multiple of %d tiles", ml.ErrShape, bt, nh*nw))
	}
	b := bt / (nh * nw)

	return rearrange(x, nh, nw,
		[]int{b, nh, nw, c, h, w},
		[]int{0, 3, 1, 4, 2, 5},
		[]int{b, c, nh * h, nw * w})
}

// SplitSequence teilt eine Sequenz der Laenge h*w (Zeilen-Reihenfolge) in nh x nw Kacheln
func SplitSequence(x *ml.Tensor, h, w, nh, nw int) (*ml.Tensor, error) {
	if x.Rank() != 3 {
		return nil, partitionErr(x, nh, nw, fmt.Errorf("%w: expected rank 3", ml.ErrShape))
	}

	b, hw, c := x.Dim(0), x.Dim(1), x.Dim(2)
	if h*w != hw {
		return nil, partitionErr(x, nh, nw, fmt.Errorf("%w: sequence length %d is not %dx%d", ml.ErrShape, hw, h, w))
	}
	if err := divisible(h, w, nh, nw); err != nil {
		return nil, partitionErr(x, nh, nw, err)
	}
	th, tw := h/nh, w/nw

	return rearrange(x, nh, nw,
		[]int{b, nh, th, nw, tw, c},
		[]int{0, 1, 3, 2, 4, 5},
		[]int{b * nh * nw, th * tw, c})
}

// MergeSequence setzt die Kacheln aus SplitSequence wieder zu [B, H*W, C] zusammen
func MergeSequence(x *ml.Tensor, h, w, nh, nw int) (*ml.Tensor, error) {
	if x.Rank() != 3 {
		return nil, partitionErr(x, nh, nw, fmt.Errorf("%w: expected rank 3", ml.ErrShape))
	}
	if err := divisible(h, w, nh, nw); err != nil {
		return nil, partitionErr(x, nh, nw, err)
	}

	bt, thw, c := x.Dim(0), x.Dim(1), x.Dim(2)
	th, tw := h/nh, w/nw
	if bt%(nh*nw) != 0 || thw != th*tw {
		return nil, partitionErr(x, nh, nw, fmt.Errorf("%w: tiles %v do not form %dx%d", ml.ErrShape, x.Shape(), h, w))
	}
	b := bt / (nh * nw)

	return rearrange(x, nh, nw,
		[]int{b, nh, nw, th, tw, c},
		[]int{0, 1, 3, 2, 4, 5},
		[]int{b, h * w, c})
}

// rearrange fuehrt reshape -> permute -> reshape aus
func rearrange(x *ml.Tensor, nh, nw int, expanded, axes, final []int) (*ml.Tensor, error) {
	t, err := x.Reshape(expanded...)
	if err != nil {
		return nil, partitionErr(x, nh, nw, err)
	}
	if t, err = t.Permute(axes...); err != nil {
		return nil, partitionErr(x, nh, nw, err)
	}
	if t, err = t.Reshape(final...); err != nil {
		return nil, partitionErr(x, nh, nw, err)
	}
	return t, nil
}

func divisible(h, w, nh, nw int) error {
	if nh < 1 || nw < 1 {
		return fmt.Errorf("%w: tile grid %dx%d", ml.ErrShape, nh, nw)
	}
	if h%nh != 0 || w%nw != 0 {
		return fmt.Errorf("%w: %dx%d is not divisible by %dx%d", ml.ErrShape, h, w, nh, nw)
	}
	return nil
}

func partitionErr(x *ml.Tensor, nh, nw int, err error) error {
	return &PartitionError{Shape: x.Shape(), NH: nh, NW: nw, Err: err}
}
