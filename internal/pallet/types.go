package pallet

import "strings"

// Box is a rectangular carton. Length and Width are its horizontal edges.
type Box struct {
	Length float64
	Width  float64
	Height float64
	Weight float64
}

// Volume returns Length × Width × Height.
func (b Box) Volume() float64 {
	return b.Length * b.Width * b.Height
}

// Pallet is the rectangular footprint boxes are stacked on.
type Pallet struct {
	Length float64
	Width  float64
}

// FootprintArea returns Length × Width.
func (p Pallet) FootprintArea() float64 {
	return p.Length * p.Width
}

// Limits bound a single pallet load.
type Limits struct {
	MaxStackHeight float64
	MaxWeight      float64
}

// Mode selects the optimization preference.
type Mode string

const (
	ModeDefault         Mode = "default"
	ModeMinimizePallets Mode = "minimizePallets"
	ModeWeightSafety    Mode = "weightSafety"
)

// ParseMode resolves a mode name case-insensitively. An empty string yields
// ModeDefault.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "default":
		return ModeDefault, nil
	case "minimizepallets":
		return ModeMinimizePallets, nil
	case "weightsafety":
		return ModeWeightSafety, nil
	default:
		return "", invalid("mode", "unknown optimization mode "+raw)
	}
}

// LimitingFactor names the constraint that determined the layer count.
type LimitingFactor string

const (
	LimitHeight LimitingFactor = "height"
	LimitWeight LimitingFactor = "weight"
)

// Orientation is one assignment of a box's horizontal edges to the pallet
// axes. EdgeAlongLength is the box edge aligned with the pallet length.
type Orientation struct {
	BoxesAlongLength int
	BoxesAlongWidth  int
	BoxesPerLayer    int
	Rotated          bool
	EdgeAlongLength  float64
	EdgeAlongWidth   float64
}

// Request bundles every input of a load plan computation.
type Request struct {
	Box      Box
	Pallet   Pallet
	Limits   Limits
	Quantity int
	Mode     Mode
}

// LoadPlan is the result of ComputeLoadPlan.
type LoadPlan struct {
	Orientation        Orientation
	Mode               Mode
	LayersByHeight     int
	LayersByWeight     int
	Layers             int
	LimitingFactor     LimitingFactor
	BoxesPerPallet     int
	PalletsNeeded      int
	BoxesOnLastPallet  int
	EffectiveMaxWeight float64
	LoadHeight         float64
	PalletWeight       float64
	TotalWeight        float64
	CubeUtilization    float64
	WeightUtilization  float64
}

// Engine computes load plans.
type Engine interface {
	ComputeLoadPlan(req Request) (LoadPlan, error)
}
