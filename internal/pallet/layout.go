package pallet

import (
	"errors"
	"fmt"
)

// MaxLayoutPlacements bounds how many placements a layout may describe.
const MaxLayoutPlacements = 50_000

// ErrLayoutTooLarge is returned when a layout would exceed MaxLayoutPlacements.
var ErrLayoutTooLarge = errors.New("layout too large")

// Placement locates one box on the pallet. X runs along the pallet length,
// Y along its width and Z up the stack, all measured from the pallet origin
// corner.
type Placement struct {
	Layer  int
	Row    int
	Column int
	X      float64
	Y      float64
	Z      float64
	Length float64
	Width  float64
	Height float64
}

// LayerLayout places the boxes of a single layer row-major, rows along the
// pallet width and columns along its length.
func LayerLayout(plan LoadPlan, box Box) ([]Placement, error) {
	o := plan.Orientation
	if err := checkLayoutSize(o.BoxesPerLayer); err != nil {
		return nil, err
	}
	placements := make([]Placement, 0, o.BoxesPerLayer)
	for row := 0; row < o.BoxesAlongWidth; row++ {
		for col := 0; col < o.BoxesAlongLength; col++ {
			placements = append(placements, Placement{
				Row:    row,
				Column: col,
				X:      float64(col) * o.EdgeAlongLength,
				Y:      float64(row) * o.EdgeAlongWidth,
				Length: o.EdgeAlongLength,
				Width:  o.EdgeAlongWidth,
				Height: box.Height,
			})
		}
	}
	return placements, nil
}

// StackLayout repeats LayerLayout for every layer of the plan.
func StackLayout(plan LoadPlan, box Box) ([]Placement, error) {
	if err := checkLayoutSize(plan.BoxesPerPallet); err != nil {
		return nil, err
	}
	layer, err := LayerLayout(plan, box)
	if err != nil {
		return nil, err
	}
	placements := make([]Placement, 0, len(layer)*plan.Layers)
	for l := 0; l < plan.Layers; l++ {
		for _, p := range layer {
			p.Layer = l
			p.Z = float64(l) * box.Height
			placements = append(placements, p)
		}
	}
	return placements, nil
}

func checkLayoutSize(n int) error {
	if n > MaxLayoutPlacements {
		return fmt.Errorf("%w: %d placements exceed the limit of %d", ErrLayoutTooLarge, n, MaxLayoutPlacements)
	}
	return nil
}
