// Package application provides application initialization and dependency wiring.
// It selects the pallet profile storage backend, seeds configured presets,
// and builds the planning engine, HTTP handlers, router, and server, keeping
// the main package focused on CLI parsing and orchestration.
package application
