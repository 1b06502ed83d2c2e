package budget

import "testing"

func TestParseTier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want Tier
	}{
		{"quick", TierQuick},
		{" QUICK ", TierQuick},
		{"standard", TierStandard},
		{"deep", TierDeep},
		{"", TierStandard},
		{"turbo", TierStandard},
	}
	for _, tc := range cases {
		if got := ParseTier(tc.raw); got != tc.want {
			t.Fatalf("ParseTier(%q)=%q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestProfilesAreMonotonic(t *testing.T) {
	t.Parallel()

	tiers := Tiers()
	for i := 1; i < len(tiers); i++ {
		lo := ForTier(tiers[i-1])
		hi := ForTier(tiers[i])
		if hi.MaxResultChars < lo.MaxResultChars {
			t.Errorf("%s.MaxResultChars=%d < %s.MaxResultChars=%d", hi.Tier, hi.MaxResultChars, lo.Tier, lo.MaxResultChars)
		}
		if hi.MaxContextChars < lo.MaxContextChars {
			t.Errorf("%s.MaxContextChars=%d < %s.MaxContextChars=%d", hi.Tier, hi.MaxContextChars, lo.Tier, lo.MaxContextChars)
		}
		if hi.MaxOutputTokens < lo.MaxOutputTokens {
			t.Errorf("%s.MaxOutputTokens=%d < %s.MaxOutputTokens=%d", hi.Tier, hi.MaxOutputTokens, lo.Tier, lo.MaxOutputTokens)
		}
		if hi.MaxToolCalls < lo.MaxToolCalls {
			t.Errorf("%s.MaxToolCalls=%d < %s.MaxToolCalls=%d", hi.Tier, hi.MaxToolCalls, lo.Tier, lo.MaxToolCalls)
		}
		if hi.ExcerptChars < lo.ExcerptChars {
			t.Errorf("%s.ExcerptChars=%d < %s.ExcerptChars=%d", hi.Tier, hi.ExcerptChars, lo.Tier, lo.ExcerptChars)
		}
	}
}

func TestEscalate(t *testing.T) {
	t.Parallel()

	if got := TierQuick.Escalate(); got != TierStandard {
		t.Fatalf("quick escalates to %q, want standard", got)
	}
	if got := TierStandard.Escalate(); got != TierDeep {
		t.Fatalf("standard escalates to %q, want deep", got)
	}
	if got := TierDeep.Escalate(); got != TierDeep {
		t.Fatalf("deep escalates to %q, want deep", got)
	}
}

func TestEscalationRaisesToolBudget(t *testing.T) {
	t.Parallel()

	std := ForTier(TierStandard)
	deep := ForTier(std.Tier.Escalate())
	if std.MaxToolCalls != 5 || deep.MaxToolCalls != 10 {
		t.Fatalf("MaxToolCalls standard=%d deep=%d, want 5 and 10", std.MaxToolCalls, deep.MaxToolCalls)
	}
}
