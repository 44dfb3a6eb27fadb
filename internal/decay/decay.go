// Package decay implements the activation and reinforcement math for the
// memory retention engine. All functions are pure; callers pass the current
// time explicitly so passes are reproducible in tests.
package decay

import (
	"math"
	"time"
)

// Activation computes the current retrievability of a record from its stored
// strength and the time elapsed since it was last accessed:
//
//	activation = strength * e^(-Δt/τ)
//
// lastAccessAt and now are Unix milliseconds. An unset lastAccessAt (<= 0)
// means the record counts as freshly seen, so activation equals strength.
// The result is monotonically decreasing in Δt and never negative.
func Activation(strength float64, lastAccessAt, now int64, tau time.Duration) float64 {
	if strength <= 0 {
		return 0
	}
	if lastAccessAt <= 0 || now <= lastAccessAt {
		return strength
	}
	tauMs := float64(tau.Milliseconds())
	if tauMs <= 0 {
		return 0
	}
	elapsed := float64(now - lastAccessAt)
	return strength * math.Exp(-elapsed/tauMs)
}

// Reinforce applies a saturating strength update:
//
//	strength' = 1 - (1 - strength) * e^(-eta)
//
// The output is always in [strength, 1): repeated reinforcement converges
// toward 1 without reaching it, and eta = 0 is a no-op.
func Reinforce(strength, eta float64) float64 {
	s := Clamp01(strength)
	if eta <= 0 {
		return s
	}
	return 1 - (1-s)*math.Exp(-eta)
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
