package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadworks/salesfilter/internal/model"
)

func TestScoreTelecomLead(t *testing.T) {
	e := NewEngine(nil)

	score, reason, bd := e.Score("John Smith", "j.smith@globaltel.net", model.Verification{})

	assert.Greater(t, score, 15, "well-formed telecom lead must beat the corporate base")
	assert.Equal(t, "telecom", bd.DomainType)
	assert.Contains(t, reason, "telecom operator domain")
	assert.Contains(t, reason, "full name provided")
	assert.True(t, strings.HasSuffix(reason, "total = 100"), "reason %q", reason)
	assert.Equal(t, 100, score)
	assert.Equal(t, 8, bd.ConsistencyScore)
	assert.Equal(t, 22, bd.EmailPatternScore)
	assert.Equal(t, 10, bd.B2BScore)
}

func TestScoreFreeProviderReducedTrack(t *testing.T) {
	e := NewEngine(nil)

	score, reason, bd := e.Score("", "test123@yahoo.com", model.Verification{})

	// consumer domains only collect the base; no digit or test-keyword
	// penalties, no TLD or geo adjustments
	assert.Equal(t, 5, score)
	assert.Equal(t, "free", bd.DomainType)
	assert.Equal(t, 0, bd.SuspiciousScore)
	assert.Equal(t, 0, bd.EmailPatternScore)
	assert.Equal(t, "free email provider, total = 5", reason)
}

func TestScoreSanctionedRegion(t *testing.T) {
	e := NewEngine(nil)

	score, reason, bd := e.Score("", "info@company.ru", model.Verification{})

	assert.GreaterOrEqual(t, score, e.Rules().MinScore)
	assert.Contains(t, reason, "sanctions")
	assert.Equal(t, -50, bd.GeographicScore)
	assert.Equal(t, "corporate", bd.DomainType)
	assert.Equal(t, -35, score)
}

func TestScoreClampedAtFloor(t *testing.T) {
	e := NewEngine(nil)

	score, reason, _ := e.Score("", "test123@fake-site.ru", model.Verification{})

	assert.Equal(t, e.Rules().MinScore, score)
	assert.True(t, strings.HasSuffix(reason, "total = -50"), "reason %q", reason)
}

func TestScoreInvalidEmail(t *testing.T) {
	e := NewEngine(nil)

	for _, email := range []string{"", "no-at-sign", "a@b@c.com", "user@"} {
		score, reason, bd := e.Score("Jane Doe", email, model.Verification{})
		assert.Equal(t, 0, score, "email %q", email)
		assert.Equal(t, "invalid", bd.DomainType)
		assert.Contains(t, reason, "invalid email address")
	}
}

func TestScoreDeterministic(t *testing.T) {
	e := NewEngine(nil)
	v := model.Verification{
		DomainAlive: true,
		Checks: []model.ProviderCheck{
			{Provider: "professional", VerificationResult: model.VerificationResult{Verified: true, Matched: true}},
		},
	}

	first, firstReason, firstBD := e.Score("Maria Garcia", "maria.garcia@telefonica.es", v)
	for i := 0; i < 10; i++ {
		score, reason, bd := e.Score("Maria Garcia", "maria.garcia@telefonica.es", v)
		require.Equal(t, first, score)
		require.Equal(t, firstReason, reason)
		require.Equal(t, firstBD, bd)
	}
}

func TestVerificationBonuses(t *testing.T) {
	e := NewEngine(nil)

	base, _, _ := e.Score("John Smith", "j.smith@globaltel.net", model.Verification{})

	tests := []struct {
		name  string
		v     model.Verification
		bonus int
	}{
		{"domain alive", model.Verification{DomainAlive: true}, 20},
		{
			"professional match",
			model.Verification{Checks: []model.ProviderCheck{
				{Provider: "professional", VerificationResult: model.VerificationResult{Verified: true, Matched: true}},
			}},
			10,
		},
		{
			"professional found only",
			model.Verification{Checks: []model.ProviderCheck{
				{Provider: "professional", VerificationResult: model.VerificationResult{Verified: true}},
			}},
			5,
		},
		{
			"codehost match",
			model.Verification{Checks: []model.ProviderCheck{
				{Provider: "codehost", VerificationResult: model.VerificationResult{Verified: true, Matched: true}},
			}},
			15,
		},
		{
			"unverified adds nothing",
			model.Verification{Checks: []model.ProviderCheck{
				{Provider: "social", VerificationResult: model.VerificationResult{Verified: false}},
			}},
			0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, _, _ := e.Score("John Smith", "j.smith@globaltel.net", tt.v)
			assert.Equal(t, base+tt.bonus, score)
		})
	}
}

func TestLivenessBonusSkippedForFreeProviders(t *testing.T) {
	e := NewEngine(nil)

	withAlive, _, _ := e.Score("Jane Doe", "jane.doe@gmail.com", model.Verification{DomainAlive: true})
	without, _, _ := e.Score("Jane Doe", "jane.doe@gmail.com", model.Verification{})

	assert.Equal(t, without, withAlive)
}

func TestBreakdownSignalsSumToTotal(t *testing.T) {
	e := NewEngine(nil)

	score, _, bd := e.Score("Dr. Anna Weber", "a.weber@telekom.de", model.Verification{DomainAlive: true})

	sum := 0
	for _, s := range bd.Signals {
		sum += s.Points
	}
	assert.Equal(t, e.Rules().Clamp(sum), score)
	assert.NotEmpty(t, bd.Signals)
}
