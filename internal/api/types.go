package api

import (
	"math"
	"time"

	"github.com/eugenenazirov/palletplan/internal/pallet"
	"github.com/eugenenazirov/palletplan/internal/storage"
	"github.com/eugenenazirov/palletplan/internal/units"
)

type boxRequest struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`
}

type footprintRequest struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
}

type planRequest struct {
	Box           boxRequest        `json:"box"`
	Pallet        *footprintRequest `json:"pallet,omitempty"`
	PalletProfile string            `json:"palletProfile,omitempty"`
	MaxHeight     float64           `json:"maxHeight"`
	MaxWeight     float64           `json:"maxWeight"`
	Quantity      float64           `json:"quantity"`
	Mode          string            `json:"mode"`
	Units         string            `json:"units"`
	IncludeLayout bool              `json:"includeLayout"`
}

type profileRequest struct {
	Length    float64 `json:"length"`
	Width     float64 `json:"width"`
	MaxHeight float64 `json:"maxHeight"`
	MaxWeight float64 `json:"maxWeight"`
	Units     string  `json:"units"`
}

type orientationResponse struct {
	BoxesAlongLength int     `json:"boxesAlongLength"`
	BoxesAlongWidth  int     `json:"boxesAlongWidth"`
	BoxesPerLayer    int     `json:"boxesPerLayer"`
	Rotated          bool    `json:"rotated"`
	EdgeAlongLength  float64 `json:"edgeAlongLength"`
	EdgeAlongWidth   float64 `json:"edgeAlongWidth"`
}

type palletResponse struct {
	Profile   string  `json:"profile,omitempty"`
	Length    float64 `json:"length"`
	Width     float64 `json:"width"`
	MaxHeight float64 `json:"maxHeight"`
	MaxWeight float64 `json:"maxWeight"`
}

type placementResponse struct {
	Layer  int     `json:"layer"`
	Row    int     `json:"row"`
	Column int     `json:"column"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PlanResponse is the JSON view of a load plan in a display unit system.
type PlanResponse struct {
	Units              string              `json:"units"`
	LengthUnit         string              `json:"lengthUnit"`
	WeightUnit         string              `json:"weightUnit"`
	Mode               string              `json:"mode"`
	Quantity           int                 `json:"quantity"`
	Pallet             palletResponse      `json:"pallet"`
	Orientation        orientationResponse `json:"orientation"`
	LayersByHeight     int                 `json:"layersByHeight"`
	LayersByWeight     int                 `json:"layersByWeight"`
	Layers             int                 `json:"layers"`
	LimitingFactor     string              `json:"limitingFactor"`
	BoxesPerPallet     int                 `json:"boxesPerPallet"`
	PalletsNeeded      int                 `json:"palletsNeeded"`
	BoxesOnLastPallet  int                 `json:"boxesOnLastPallet"`
	EffectiveMaxWeight float64             `json:"effectiveMaxWeight"`
	LoadHeight         float64             `json:"loadHeight"`
	PalletWeight       float64             `json:"palletWeight"`
	TotalWeight        float64             `json:"totalWeight"`
	CubeUtilization    float64             `json:"cubeUtilization"`
	WeightUtilization  float64             `json:"weightUtilization"`
	Layout             []placementResponse `json:"layout,omitempty"`
	CalculationTimeMs  int64               `json:"calculationTimeMs"`
}

type profileResponse struct {
	Name      string  `json:"name"`
	Length    float64 `json:"length"`
	Width     float64 `json:"width"`
	MaxHeight float64 `json:"maxHeight"`
	MaxWeight float64 `json:"maxWeight"`
}

type profilesResponse struct {
	Units     string            `json:"units"`
	Profiles  []profileResponse `json:"profiles"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type profileUpdateResponse struct {
	Profile   profileResponse `json:"profile"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Message   string          `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Field      string `json:"field,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NewPlanResponse renders plan, computed from req in base units, in system.
// profile names the pallet preset used, if any. It fails with
// pallet.ErrLayoutTooLarge when includeLayout is set for a plan whose layout
// exceeds pallet.MaxLayoutPlacements.
func NewPlanResponse(plan pallet.LoadPlan, req pallet.Request, profile string, system units.System, includeLayout bool, elapsed time.Duration) (PlanResponse, error) {
	length, weight := lengthIn(system), weightIn(system)
	o := plan.Orientation

	resp := PlanResponse{
		Units:      string(system),
		LengthUnit: system.LengthUnit(),
		WeightUnit: system.WeightUnit(),
		Mode:       string(plan.Mode),
		Quantity:   req.Quantity,
		Pallet: palletResponse{
			Profile:   profile,
			Length:    length(req.Pallet.Length),
			Width:     length(req.Pallet.Width),
			MaxHeight: length(req.Limits.MaxStackHeight),
			MaxWeight: weight(req.Limits.MaxWeight),
		},
		Orientation: orientationResponse{
			BoxesAlongLength: o.BoxesAlongLength,
			BoxesAlongWidth:  o.BoxesAlongWidth,
			BoxesPerLayer:    o.BoxesPerLayer,
			Rotated:          o.Rotated,
			EdgeAlongLength:  length(o.EdgeAlongLength),
			EdgeAlongWidth:   length(o.EdgeAlongWidth),
		},
		LayersByHeight:     plan.LayersByHeight,
		LayersByWeight:     plan.LayersByWeight,
		Layers:             plan.Layers,
		LimitingFactor:     string(plan.LimitingFactor),
		BoxesPerPallet:     plan.BoxesPerPallet,
		PalletsNeeded:      plan.PalletsNeeded,
		BoxesOnLastPallet:  plan.BoxesOnLastPallet,
		EffectiveMaxWeight: weight(plan.EffectiveMaxWeight),
		LoadHeight:         length(plan.LoadHeight),
		PalletWeight:       weight(plan.PalletWeight),
		TotalWeight:        weight(plan.TotalWeight),
		CubeUtilization:    round2(plan.CubeUtilization),
		WeightUtilization:  round2(plan.WeightUtilization),
		CalculationTimeMs:  elapsed.Milliseconds(),
	}
	if includeLayout {
		placements, err := pallet.StackLayout(plan, req.Box)
		if err != nil {
			return PlanResponse{}, err
		}
		resp.Layout = make([]placementResponse, 0, len(placements))
		for _, p := range placements {
			resp.Layout = append(resp.Layout, newPlacementResponse(p, system))
		}
	}
	return resp, nil
}

func newPlacementResponse(p pallet.Placement, system units.System) placementResponse {
	length := lengthIn(system)
	return placementResponse{
		Layer:  p.Layer,
		Row:    p.Row,
		Column: p.Column,
		X:      length(p.X),
		Y:      length(p.Y),
		Z:      length(p.Z),
		Length: length(p.Length),
		Width:  length(p.Width),
		Height: length(p.Height),
	}
}

func newProfileResponse(p storage.Profile, system units.System) profileResponse {
	length, weight := lengthIn(system), weightIn(system)
	return profileResponse{
		Name:      p.Name,
		Length:    length(p.Length),
		Width:     length(p.Width),
		MaxHeight: length(p.MaxHeight),
		MaxWeight: weight(p.MaxWeight),
	}
}

func lengthIn(system units.System) func(float64) float64 {
	return func(v float64) float64 { return round2(system.LengthFromBase(v)) }
}

func weightIn(system units.System) func(float64) float64 {
	return func(v float64) float64 { return round2(system.WeightFromBase(v)) }
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
