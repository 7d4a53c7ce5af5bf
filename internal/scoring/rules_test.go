package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultRulesValidate(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())
}

func TestValidateRejectsBadRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Rules)
	}{
		{"inverted bounds", func(r *Rules) { r.MinScore = 200 }},
		{"zero telecom base", func(r *Rules) { r.Base.Telecom = 0 }},
		{"negative tld bonus", func(r *Rules) { r.TLDBonus = -1 }},
		{"diversity ratio out of range", func(r *Rules) { r.Suspicious.DiversityRatio = 1.5 }},
		{"inverted length range", func(r *Rules) { r.EmailPattern.GoodLengthMin = 30 }},
		{"unnamed industry tier", func(r *Rules) { r.Industries[0].Name = "" }},
		{"geo key without dot", func(r *Rules) {
			r.GeoTiers["de"] = GeoTier{Country: "Germany", Points: 15}
		}},
		{"sanctioned tier with bonus", func(r *Rules) {
			r.GeoTiers[".ru"] = GeoTier{Country: "Russia", Points: 10, Sanctioned: true}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRules()
			tt.mutate(r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	data, err := yaml.Marshal(DefaultRules())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), loaded)
}

func TestLoadRulesErrors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("min_score: [not an int]"), 0o644))
	_, err = LoadRules(bad)
	assert.Error(t, err)

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("min_score: 500\nmax_score: 100"), 0o644))
	_, err = LoadRules(invalid)
	assert.Error(t, err)
}
