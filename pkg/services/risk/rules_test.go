package risk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRuleSet_Order(t *testing.T) {
	rules, err := DefaultRuleSet()
	require.NoError(t, err)

	ids := rules.IDs()
	require.NotEmpty(t, ids)
	assert.Equal(t, "fuel_substitution", ids[0])
	assert.Equal(t, "high_relevance_review", ids[len(ids)-1])
}

func TestRuleSet_Evaluate(t *testing.T) {
	rules, err := DefaultRuleSet()
	require.NoError(t, err)

	tests := []struct {
		name  string
		facts Facts
		want  []string
	}{
		{
			name:  "no facts fire nothing",
			facts: Facts{},
			want:  []string{},
		},
		{
			name: "materials at medium relevance",
			facts: Facts{
				TopCategory:       "Materials",
				TopRelevance:      "Medium",
				CategoryRelevance: map[string]int64{"Materials": 2},
			},
			want: []string{"low_carbon_materials"},
		},
		{
			name: "materials at low relevance do not fire",
			facts: Facts{
				CategoryRelevance: map[string]int64{"Materials": 1},
			},
			want: []string{},
		},
		{
			name: "fuel at medium relevance skips substitution",
			facts: Facts{
				TopCategory:       "Fuel",
				TopRelevance:      "Medium",
				CategoryRelevance: map[string]int64{"Fuel": 2},
				UnresolvedCount:   2,
			},
			want: []string{"factor_gaps"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			for _, r := range rules.Evaluate(context.Background(), tt.facts) {
				got = append(got, r.RuleID)
				assert.NotEmpty(t, r.Text)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRuleSet_Errors(t *testing.T) {
	_, err := NewRuleSet([]Rule{{ID: "bad", Condition: "top_category ==", Text: "x"}})
	assert.Error(t, err)

	_, err = NewRuleSet([]Rule{{ID: "not_bool", Condition: "high_count + 1", Text: "x"}})
	assert.Error(t, err)

	_, err = NewRuleSet([]Rule{{ID: "unknown_var", Condition: "vendor == 'x'", Text: "x"}})
	assert.Error(t, err)

	_, err = NewRuleSet([]Rule{
		{ID: "dup", Condition: "true", Text: "x"},
		{ID: "dup", Condition: "true", Text: "y"},
	})
	assert.Error(t, err)

	_, err = NewRuleSet([]Rule{{ID: "no_text", Condition: "true"}})
	assert.Error(t, err)
}

func TestLoadRuleSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: big_share
    condition: top_share >= 50.0
    text: Concentrate reduction work on the top driver.
  - id: energy_share
    condition: '"Energy" in category_share && category_share["Energy"] > 10.0'
    text: Audit energy usage.
`), 0o600))

	rules, err := LoadRuleSet(path)
	require.NoError(t, err)

	recs := rules.Evaluate(context.Background(), Facts{
		TopShare:      55,
		CategoryShare: map[string]float64{"Energy": 42},
	})
	require.Len(t, recs, 2)
	assert.Equal(t, "big_share", recs[0].RuleID)
	assert.Equal(t, "energy_share", recs[1].RuleID)

	_, err = LoadRuleSet(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
