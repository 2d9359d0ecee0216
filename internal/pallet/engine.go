package pallet

import (
	"fmt"
	"math"
)

// WeightSafetyFactor is the share of the nominal weight limit usable under
// ModeWeightSafety.
const WeightSafetyFactor = 0.8

// MaxBoxesPerPallet bounds the capacity of a single pallet. Box and pallet
// combinations holding more are rejected as invalid input.
const MaxBoxesPerPallet = 1 << 40

// floorTolerance is the relative shortfall forgiven when flooring a count,
// so metric conversion noise such as 47.999999999999996 / 12 still yields 4.
const floorTolerance = 1e-12

// countLimit is where floorDiv saturates. It exceeds MaxBoxesPerPallet so a
// saturated count is always rejected downstream.
const countLimit = MaxBoxesPerPallet + 1

type engine struct{}

// New returns the default Engine.
func New() Engine {
	return engine{}
}

func (engine) ComputeLoadPlan(req Request) (LoadPlan, error) {
	return ComputeLoadPlan(req)
}

// ComputeOrientation counts how many boxes fit when edgeA runs along the
// pallet length and edgeB along its width. A count of zero means the box
// does not fit that way.
func ComputeOrientation(edgeA, edgeB, palletLength, palletWidth float64) Orientation {
	alongLength := floorDiv(palletLength, edgeA)
	alongWidth := floorDiv(palletWidth, edgeB)

	perLayer := countLimit
	if alongWidth == 0 || alongLength <= countLimit/alongWidth {
		perLayer = alongLength * alongWidth
	}
	return Orientation{
		BoxesAlongLength: alongLength,
		BoxesAlongWidth:  alongWidth,
		BoxesPerLayer:    perLayer,
		EdgeAlongLength:  edgeA,
		EdgeAlongWidth:   edgeB,
	}
}

// ChooseBestOrientation compares the box as given against the box turned a
// quarter and keeps the one with more boxes per layer. Ties keep the
// unrotated orientation.
func ChooseBestOrientation(box Box, pallet Pallet) Orientation {
	straight := ComputeOrientation(box.Length, box.Width, pallet.Length, pallet.Width)
	rotated := ComputeOrientation(box.Width, box.Length, pallet.Length, pallet.Width)
	rotated.Rotated = true

	if rotated.BoxesPerLayer > straight.BoxesPerLayer {
		return rotated
	}
	return straight
}

// Fits reports whether the box footprint fits the pallet in either
// horizontal orientation.
func Fits(box Box, pallet Pallet) bool {
	straight := box.Length <= pallet.Length && box.Width <= pallet.Width
	turned := box.Width <= pallet.Length && box.Length <= pallet.Width
	return straight || turned
}

// ComputeLoadPlan validates req and derives the full load plan. It fails with
// *InvalidInputError or *InfeasibleLoadError and never returns a partial plan.
func ComputeLoadPlan(req Request) (LoadPlan, error) {
	mode, err := validate(req)
	if err != nil {
		return LoadPlan{}, err
	}

	box, pallet, limits := req.Box, req.Pallet, req.Limits

	if !Fits(box, pallet) {
		return LoadPlan{}, infeasible(ReasonDoesNotFit)
	}
	if box.Height > limits.MaxStackHeight {
		return LoadPlan{}, infeasible(ReasonExceedsHeight)
	}
	if box.Weight > limits.MaxWeight {
		return LoadPlan{}, infeasible(ReasonExceedsWeight)
	}

	orientation := ChooseBestOrientation(box, pallet)

	effectiveMaxWeight := limits.MaxWeight
	if mode == ModeWeightSafety {
		effectiveMaxWeight = WeightSafetyFactor * limits.MaxWeight
	}

	layersByHeight := floorDiv(limits.MaxStackHeight, box.Height)
	layersByWeight := floorDiv(effectiveMaxWeight, float64(orientation.BoxesPerLayer)*box.Weight)

	layers, limiting := layersByHeight, LimitHeight
	if layersByWeight < layersByHeight {
		layers, limiting = layersByWeight, LimitWeight
	}

	if layers == 0 {
		return LoadPlan{}, infeasible(ReasonZeroCapacity)
	}
	if orientation.BoxesPerLayer > MaxBoxesPerPallet/layers {
		return LoadPlan{}, invalid("box", fmt.Sprintf("too small for the pallet and limits: more than %d boxes per pallet", MaxBoxesPerPallet))
	}
	boxesPerPallet := orientation.BoxesPerLayer * layers

	palletsNeeded := req.Quantity / boxesPerPallet
	if req.Quantity%boxesPerPallet != 0 {
		palletsNeeded++
	}

	return LoadPlan{
		Orientation:        orientation,
		Mode:               mode,
		LayersByHeight:     layersByHeight,
		LayersByWeight:     layersByWeight,
		Layers:             layers,
		LimitingFactor:     limiting,
		BoxesPerPallet:     boxesPerPallet,
		PalletsNeeded:      palletsNeeded,
		BoxesOnLastPallet:  req.Quantity - (palletsNeeded-1)*boxesPerPallet,
		EffectiveMaxWeight: effectiveMaxWeight,
		LoadHeight:         float64(layers) * box.Height,
		PalletWeight:       float64(boxesPerPallet) * box.Weight,
		TotalWeight:        float64(req.Quantity) * box.Weight,
		CubeUtilization:    CubeUtilization(boxesPerPallet, box, pallet, limits),
		WeightUtilization:  WeightUtilization(boxesPerPallet, box, limits),
	}, nil
}

// CubeUtilization is the percentage of footprint × max stack height occupied
// by boxesPerPallet boxes.
func CubeUtilization(boxesPerPallet int, box Box, pallet Pallet, limits Limits) float64 {
	return float64(boxesPerPallet) * box.Volume() / (pallet.FootprintArea() * limits.MaxStackHeight) * 100
}

// WeightUtilization is the percentage of the nominal weight limit used by
// boxesPerPallet boxes, regardless of any safety margin.
func WeightUtilization(boxesPerPallet int, box Box, limits Limits) float64 {
	return float64(boxesPerPallet) * box.Weight / limits.MaxWeight * 100
}

func validate(req Request) (Mode, error) {
	fields := []struct {
		name  string
		value float64
	}{
		{"box.length", req.Box.Length},
		{"box.width", req.Box.Width},
		{"box.height", req.Box.Height},
		{"box.weight", req.Box.Weight},
		{"pallet.length", req.Pallet.Length},
		{"pallet.width", req.Pallet.Width},
		{"maxHeight", req.Limits.MaxStackHeight},
		{"maxWeight", req.Limits.MaxWeight},
	}
	for _, f := range fields {
		if err := checkPositive(f.name, f.value); err != nil {
			return "", err
		}
	}

	if req.Quantity <= 0 {
		return "", invalid("quantity", "must be a positive integer")
	}

	return ParseMode(string(req.Mode))
}

func checkPositive(field string, value float64) error {
	switch {
	case math.IsNaN(value) || math.IsInf(value, 0):
		return invalid(field, "must be a finite number")
	case value <= 0:
		return invalid(field, "must be greater than zero")
	}
	return nil
}

// floorDiv counts whole b in a, saturating at countLimit. It returns 0
// whenever b exceeds a, so a count of one or more always means b fits.
func floorDiv(a, b float64) int {
	if b > a {
		return 0
	}
	q := math.Floor(a / b)
	if q >= countLimit {
		return countLimit
	}
	if (q+1)*b-a <= a*floorTolerance {
		q++
	}
	return int(q)
}
