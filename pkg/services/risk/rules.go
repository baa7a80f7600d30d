package risk

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/google/cel-go/cel"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var builtinRules []byte

// Rule is a recommendation guarded by a CEL condition over Facts.
type Rule struct {
	ID        string `yaml:"id"`
	Condition string `yaml:"condition"`
	Text      string `yaml:"text"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Facts are the variables visible to rule conditions.
type Facts struct {
	TopCategory       string
	TopRelevance      string
	TopShare          float64
	CategoryShare     map[string]float64
	CategoryRelevance map[string]int64
	UnresolvedCount   int64
	HighCount         int64
}

func (f Facts) vars() map[string]any {
	share := f.CategoryShare
	if share == nil {
		share = map[string]float64{}
	}
	relevance := f.CategoryRelevance
	if relevance == nil {
		relevance = map[string]int64{}
	}
	return map[string]any{
		"top_category":       f.TopCategory,
		"top_relevance":      f.TopRelevance,
		"top_share":          f.TopShare,
		"category_share":     share,
		"category_relevance": relevance,
		"unresolved_count":   f.UnresolvedCount,
		"high_count":         f.HighCount,
	}
}

type compiledRule struct {
	Rule
	program cel.Program
}

// RuleSet evaluates its rules in the order they were given.
type RuleSet struct {
	rules []compiledRule
}

func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("top_category", cel.StringType),
		cel.Variable("top_relevance", cel.StringType),
		cel.Variable("top_share", cel.DoubleType),
		cel.Variable("category_share", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("category_relevance", cel.MapType(cel.StringType, cel.IntType)),
		cel.Variable("unresolved_count", cel.IntType),
		cel.Variable("high_count", cel.IntType),
	)
}

func NewRuleSet(rules []Rule) (*RuleSet, error) {
	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	seen := make(map[string]struct{}, len(rules))
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule id cannot be empty")
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		if r.Text == "" {
			return nil, fmt.Errorf("rule %s has no recommendation text", r.ID)
		}

		ast, issues := env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s compilation error: %w", r.ID, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %s condition must be boolean, got %s", r.ID, ast.OutputType())
		}

		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s program creation error: %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{Rule: r, program: prg})
	}

	return &RuleSet{rules: compiled}, nil
}

// DefaultRuleSet compiles the embedded rule table.
func DefaultRuleSet() (*RuleSet, error) {
	return ParseRuleSet(builtinRules)
}

// LoadRuleSet reads a YAML rule table; an empty path yields the default table.
func LoadRuleSet(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRuleSet()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table: %w", err)
	}
	return ParseRuleSet(data)
}

func ParseRuleSet(data []byte) (*RuleSet, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule table: %w", err)
	}
	return NewRuleSet(file.Rules)
}

// IDs lists rule ids in evaluation order.
func (rs *RuleSet) IDs() []string {
	ids := make([]string, 0, len(rs.rules))
	for _, r := range rs.rules {
		ids = append(ids, r.ID)
	}
	return ids
}

// Evaluate returns one recommendation per matching rule, in rule order. A rule
// that fails at runtime is logged and skipped.
func (rs *RuleSet) Evaluate(ctx context.Context, facts Facts) []domain.Recommendation {
	logger := zerolog.Ctx(ctx)
	vars := facts.vars()

	recommendations := make([]domain.Recommendation, 0)
	for _, r := range rs.rules {
		out, _, err := r.program.Eval(vars)
		if err != nil {
			logger.Warn().Err(err).Str("rule_id", r.ID).Msg("rule evaluation failed")
			continue
		}
		if match, ok := out.Value().(bool); ok && match {
			recommendations = append(recommendations, domain.Recommendation{RuleID: r.ID, Text: r.Text})
		}
	}
	return recommendations
}
