// Package pallet computes pallet load plans: how many boxes fit in a layer,
// how many layers a pallet can carry under its height and weight limits, and
// how many pallets an order needs. All functions are pure and safe for
// concurrent use; inputs are expected in a single consistent unit system.
package pallet
