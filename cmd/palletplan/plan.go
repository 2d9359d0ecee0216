package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/eugenenazirov/palletplan/internal/api"
	"github.com/eugenenazirov/palletplan/internal/pallet"
	"github.com/eugenenazirov/palletplan/internal/storage"
	"github.com/eugenenazirov/palletplan/internal/units"
)

// planOptions carries the plan command flags. Values are in units.
type planOptions struct {
	box       string
	weight    float64
	pallet    string
	maxHeight float64
	maxWeight float64
	quantity  int
	mode      string
	layout    bool
	units     units.System
}

// runPlan computes one load plan and writes it to out as indented JSON.
func runPlan(ctx context.Context, out io.Writer, engine pallet.Engine, store storage.Storage, opts planOptions) error {
	system := opts.units
	if system == "" {
		system = units.Imperial
	}

	dims, err := parseDimensions(opts.box, 3)
	if err != nil {
		return fmt.Errorf("invalid --box: %w", err)
	}

	req := pallet.Request{
		Box: pallet.Box{
			Length: system.LengthToBase(dims[0]),
			Width:  system.LengthToBase(dims[1]),
			Height: system.LengthToBase(dims[2]),
			Weight: system.WeightToBase(opts.weight),
		},
		Limits: pallet.Limits{
			MaxStackHeight: system.LengthToBase(opts.maxHeight),
			MaxWeight:      system.WeightToBase(opts.maxWeight),
		},
		Quantity: opts.quantity,
		Mode:     pallet.Mode(opts.mode),
	}

	var profileName string
	if footprint, err := parseDimensions(opts.pallet, 2); err == nil {
		req.Pallet = pallet.Pallet{
			Length: system.LengthToBase(footprint[0]),
			Width:  system.LengthToBase(footprint[1]),
		}
	} else {
		profile, err := store.Get(ctx, opts.pallet)
		if err != nil {
			if errors.Is(err, storage.ErrProfileNotFound) {
				return fmt.Errorf("unknown pallet profile %q", opts.pallet)
			}
			return err
		}
		profileName = profile.Name
		req.Pallet = pallet.Pallet{Length: profile.Length, Width: profile.Width}
		if opts.maxHeight == 0 {
			req.Limits.MaxStackHeight = profile.MaxHeight
		}
		if opts.maxWeight == 0 {
			req.Limits.MaxWeight = profile.MaxWeight
		}
	}

	start := time.Now()
	plan, err := engine.ComputeLoadPlan(req)
	if err != nil {
		return err
	}

	resp, err := api.NewPlanResponse(plan, req, profileName, system, opts.layout, time.Since(start))
	if err != nil {
		return fmt.Errorf("--layout: %w", err)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// parseDimensions parses n positive numbers separated by "," or "x".
func parseDimensions(raw string, n int) ([]float64, error) {
	parts := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return r == ',' || r == 'x'
	})
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d values, got %q", n, raw)
	}

	values := make([]float64, 0, n)
	for _, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", part)
		}
		values = append(values, value)
	}
	return values, nil
}
