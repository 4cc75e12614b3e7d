package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mbd888/accessguard/internal/event"
)

func TestVerdict_Thresholds(t *testing.T) {
	e := testEngine()

	tests := []struct {
		score    float64
		identity float64
		want     event.Verdict
	}{
		{0.0, 0, event.VerdictNormal},
		{0.29, 0, event.VerdictNormal},
		{0.30, 0, event.VerdictSuspicious}, // boundary is inclusive upward
		{0.59, 0, event.VerdictSuspicious},
		{0.60, 0, event.VerdictHighRisk},
		{1.0, 0, event.VerdictHighRisk},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.verdict(tt.score, tt.identity),
			"score=%v identity=%v", tt.score, tt.identity)
	}
}

func TestVerdict_IdentityBleed(t *testing.T) {
	e := testEngine()

	// 0.2 + 0.3*0.5 = 0.35 crosses into SUSPICIOUS on accumulated risk alone
	assert.Equal(t, event.VerdictSuspicious, e.verdict(0.2, 0.3))

	// Without the identity contribution the same score stays NORMAL
	assert.Equal(t, event.VerdictNormal, e.verdict(0.2, 0))
}

func TestVerdict_CombinedCapped(t *testing.T) {
	e := testEngine()

	// 0.9 + 0.9*0.5 would exceed 1.0; still a plain HIGH_RISK
	assert.Equal(t, event.VerdictHighRisk, e.verdict(0.9, 0.9))
}
