// Package plan resolves a deployment mode into the ordered compose overlays
// that make up its process group. Everything here is a pure function of its
// inputs so overlay composition can be tested without touching containers.
package plan

import (
	"errors"
	"fmt"
	"strings"

	"researchctl/internal/config"
)

// ErrUnknownMode is returned for mode strings outside the supported set.
var ErrUnknownMode = errors.New("unknown deployment mode")

// Mode is a deployment mode.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// DefaultMode is used when no mode argument is given.
const DefaultMode = ModeProduction

// ParseMode accepts the canonical names plus the short dev/prod aliases.
// "standard" is an accepted spelling of production: both plan to the same
// overlays, so keeping two modes apart would only invite drift.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultMode, nil
	case "dev", "development":
		return ModeDevelopment, nil
	case "prod", "production", "standard":
		return ModeProduction, nil
	default:
		return "", fmt.Errorf("%w %q (expected dev, development, prod, production or standard)", ErrUnknownMode, s)
	}
}

// Overlay is one compose file in an overlay combination.
type Overlay struct {
	Name string // "base" or "dev"
	File string
}

// Overlays is an ordered overlay combination.
type Overlays []Overlay

// Files returns the compose file names in order.
func (o Overlays) Files() []string {
	files := make([]string, len(o))
	for i, ov := range o {
		files[i] = ov.File
	}
	return files
}

// Key is a stable identifier of the combination, e.g. "base+dev".
func (o Overlays) Key() string {
	names := make([]string, len(o))
	for i, ov := range o {
		names[i] = ov.Name
	}
	return strings.Join(names, "+")
}

// Equal reports whether two combinations name the same files in the same order.
func (o Overlays) Equal(other Overlays) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// Plan maps a mode to its overlays: production uses the base file only,
// development adds the dev overlay on top.
func Plan(mode Mode, cfg config.OverlayConfig) (Overlays, error) {
	base := Overlay{Name: "base", File: cfg.Base}
	switch mode {
	case ModeProduction:
		return Overlays{base}, nil
	case ModeDevelopment:
		if cfg.Dev == "" {
			return nil, fmt.Errorf("development mode requires overlays.dev to be configured")
		}
		return Overlays{base, {Name: "dev", File: cfg.Dev}}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMode, string(mode))
	}
}

// KnownCombinations lists every overlay combination any supported mode can
// produce, without duplicates, in a fixed order.
func KnownCombinations(cfg config.OverlayConfig) []Overlays {
	var combos []Overlays
	for _, m := range []Mode{ModeProduction, ModeDevelopment} {
		ov, err := Plan(m, cfg)
		if err != nil {
			continue
		}
		dup := false
		for _, c := range combos {
			if c.Equal(ov) {
				dup = true
				break
			}
		}
		if !dup {
			combos = append(combos, ov)
		}
	}
	return combos
}
