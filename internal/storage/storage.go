package storage

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/eugenenazirov/palletplan/internal/units"
)

const maxProfiles = 50

var (
	// ErrInvalidProfile indicates the provided profile violates validation rules.
	ErrInvalidProfile = errors.New("pallet profile requires a name and positive finite dimensions")
	// ErrTooManyProfiles is returned when storing another profile would exceed the limit.
	ErrTooManyProfiles = errors.New("pallet profile limit reached")
	// ErrProfileNotFound is returned when no profile exists under the requested name.
	ErrProfileNotFound = errors.New("pallet profile not found")
)

// Profile is a named pallet preset. Dimensions are in inches and pounds.
type Profile struct {
	Name      string  `json:"name" yaml:"name"`
	Length    float64 `json:"length" yaml:"length"`
	Width     float64 `json:"width" yaml:"width"`
	MaxHeight float64 `json:"maxHeight" yaml:"max_height"`
	MaxWeight float64 `json:"maxWeight" yaml:"max_weight"`
}

// Storage provides access to the pallet presets offered to planners.
type Storage interface {
	List(ctx context.Context) ([]Profile, error)
	Get(ctx context.Context, name string) (Profile, error)
	Put(ctx context.Context, profile Profile) error
	Delete(ctx context.Context, name string) error
}

// DefaultProfiles returns the built-in pallet presets sorted by name.
func DefaultProfiles() []Profile {
	cm, kg := units.Metric.LengthToBase, units.Metric.WeightToBase
	return sortProfiles([]Profile{
		{Name: "gma", Length: 48, Width: 40, MaxHeight: 48, MaxWeight: 2200},
		{Name: "euro", Length: cm(120), Width: cm(80), MaxHeight: cm(150), MaxWeight: kg(1000)},
		{Name: "iso", Length: cm(120), Width: cm(100), MaxHeight: cm(150), MaxWeight: kg(1000)},
		{Name: "half", Length: 48, Width: 20, MaxHeight: 48, MaxWeight: 1100},
	})
}

// MemoryStorage keeps profiles in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryStorage initialises storage with the default profiles.
func NewMemoryStorage() *MemoryStorage {
	s := &MemoryStorage{profiles: make(map[string]Profile)}
	for _, p := range DefaultProfiles() {
		s.profiles[p.Name] = p
	}
	return s
}

// List returns every profile sorted by name.
func (s *MemoryStorage) List(_ context.Context) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return sortProfiles(out), nil
}

// Get returns the profile stored under name.
func (s *MemoryStorage) Get(_ context.Context, name string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[NormalizeName(name)]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

// Put validates, normalises, and stores the profile, replacing any profile
// with the same name.
func (s *MemoryStorage) Put(_ context.Context, profile Profile) error {
	normalized, err := normalizeProfile(profile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[normalized.Name]; !exists && len(s.profiles) >= maxProfiles {
		return ErrTooManyProfiles
	}
	s.profiles[normalized.Name] = normalized
	return nil
}

// Delete removes the profile stored under name.
func (s *MemoryStorage) Delete(_ context.Context, name string) error {
	key := NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[key]; !ok {
		return ErrProfileNotFound
	}
	delete(s.profiles, key)
	return nil
}

// NormalizeName lower-cases and trims a profile name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeProfile(p Profile) (Profile, error) {
	p.Name = NormalizeName(p.Name)
	if p.Name == "" {
		return Profile{}, ErrInvalidProfile
	}
	for _, v := range []float64{p.Length, p.Width, p.MaxHeight, p.MaxWeight} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return Profile{}, ErrInvalidProfile
		}
	}
	return p, nil
}

func sortProfiles(profiles []Profile) []Profile {
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})
	return profiles
}
