// Package budget defines the per-tier resource limits shared by every
// consumer of a research request: context assembly, tool output compaction,
// model output and the tool-call loop itself.
package budget

import "strings"

type Tier string

const (
	TierQuick    Tier = "quick"
	TierStandard Tier = "standard"
	TierDeep     Tier = "deep"
)

// ParseTier normalizes a client-supplied tier. Unknown values fall back to
// standard, which is also the documented default.
func ParseTier(raw string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierQuick:
		return TierQuick
	case TierDeep:
		return TierDeep
	default:
		return TierStandard
	}
}

// Profile is the bundle of limits selected by a tier. Every field is
// monotonically non-decreasing from quick to deep.
type Profile struct {
	Tier            Tier
	MaxResultChars  int
	MaxContextChars int
	MaxOutputTokens int
	MaxToolCalls    int
	ExcerptChars    int
}

var profiles = map[Tier]Profile{
	TierQuick: {
		Tier:            TierQuick,
		MaxResultChars:  6_000,
		MaxContextChars: 24_000,
		MaxOutputTokens: 1024,
		MaxToolCalls:    3,
		ExcerptChars:    600,
	},
	TierStandard: {
		Tier:            TierStandard,
		MaxResultChars:  12_000,
		MaxContextChars: 48_000,
		MaxOutputTokens: 2048,
		MaxToolCalls:    5,
		ExcerptChars:    1200,
	},
	TierDeep: {
		Tier:            TierDeep,
		MaxResultChars:  24_000,
		MaxContextChars: 96_000,
		MaxOutputTokens: 4096,
		MaxToolCalls:    10,
		ExcerptChars:    2400,
	},
}

// ForTier returns the profile for a tier. The zero Tier maps to standard.
func ForTier(t Tier) Profile {
	if p, ok := profiles[t]; ok {
		return p
	}
	return profiles[TierStandard]
}

// Escalate moves one tier up. Deep is the ceiling.
func (t Tier) Escalate() Tier {
	switch t {
	case TierQuick:
		return TierStandard
	case TierStandard:
		return TierDeep
	default:
		return TierDeep
	}
}

// Tiers lists all tiers in ascending order.
func Tiers() []Tier {
	return []Tier{TierQuick, TierStandard, TierDeep}
}
