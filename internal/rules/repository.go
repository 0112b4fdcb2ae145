// Package rules holds the static per-insurer eligibility rule table and the
// insurer alias table used to resolve free-text insurer names.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

//go:embed rules.yaml
var embeddedRules []byte

type ruleFile struct {
	Insurers []insurerEntry `yaml:"insurers"`
}

type insurerEntry struct {
	Name            string               `yaml:"name"`
	Aliases         []string             `yaml:"aliases"`
	StrictNecessity bool                 `yaml:"strict_necessity"`
	Rules           map[string]ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Criteria            string   `yaml:"criteria"`
	RequiredDocuments   []string `yaml:"required_documents"`
	DenialReasons       []string `yaml:"denial_reasons"`
	MinimumRequirements []string `yaml:"minimum_requirements"`
}

// Repository is an immutable, total lookup over the rule table. It is safe
// for concurrent use.
type Repository struct {
	rules   map[string]map[string]domain.InsuranceRule
	aliases map[string]string
	names   []string
}

var (
	defaultOnce sync.Once
	defaultRepo *Repository
)

// Default returns the repository built from the embedded rule table.
func Default() *Repository {
	defaultOnce.Do(func() {
		repo, err := Load(embeddedRules)
		if err != nil {
			panic(fmt.Sprintf("embedded rule table is invalid: %v", err))
		}
		defaultRepo = repo
	})
	return defaultRepo
}

// LoadFile loads a rule table from a YAML file on disk.
func LoadFile(path string) (*Repository, error) {
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule table: %w", err)
	}
	return Load(data)
}

// Load parses a YAML rule table. Unknown requirement tokens, insurers without
// a general rule and conflicting aliases are rejected.
func Load(data []byte) (*Repository, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rule table: %w", err)
	}
	if len(file.Insurers) == 0 {
		return nil, fmt.Errorf("rule table has no insurers")
	}

	repo := &Repository{
		rules:   make(map[string]map[string]domain.InsuranceRule, len(file.Insurers)),
		aliases: make(map[string]string),
	}

	for _, ins := range file.Insurers {
		if ins.Name == "" {
			return nil, fmt.Errorf("insurer without a name")
		}
		if _, dup := repo.rules[ins.Name]; dup {
			return nil, fmt.Errorf("insurer %s declared twice", ins.Name)
		}
		if _, ok := ins.Rules[domain.CategoryGeneral]; !ok {
			return nil, fmt.Errorf("insurer %s has no %s rule", ins.Name, domain.CategoryGeneral)
		}

		byCategory := make(map[string]domain.InsuranceRule, len(ins.Rules))
		for category, entry := range ins.Rules {
			tokens := make([]domain.RequirementToken, 0, len(entry.MinimumRequirements))
			for _, raw := range entry.MinimumRequirements {
				tok, err := domain.ParseRequirementToken(raw)
				if err != nil {
					return nil, fmt.Errorf("insurer %s, category %s: %w", ins.Name, category, err)
				}
				tokens = append(tokens, tok)
			}
			byCategory[category] = domain.InsuranceRule{
				Insurer:             ins.Name,
				Category:            category,
				Criteria:            strings.TrimSpace(entry.Criteria),
				RequiredDocuments:   nonNil(entry.RequiredDocuments),
				DenialReasons:       nonNil(entry.DenialReasons),
				MinimumRequirements: tokens,
				StrictNecessity:     ins.StrictNecessity,
			}
		}
		repo.rules[ins.Name] = byCategory
		repo.names = append(repo.names, ins.Name)

		for _, alias := range append([]string{ins.Name}, ins.Aliases...) {
			key := NormalizeInsurer(alias)
			if existing, ok := repo.aliases[key]; ok && existing != ins.Name {
				return nil, fmt.Errorf("alias %q maps to both %s and %s", alias, existing, ins.Name)
			}
			repo.aliases[key] = ins.Name
		}
	}

	return repo, nil
}

// NormalizeInsurer lower-cases an insurer name, turns punctuation into spaces
// and collapses runs of whitespace.
func NormalizeInsurer(name string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, name)
	return strings.Join(strings.Fields(mapped), " ")
}

// CanonicalInsurer resolves a free-text insurer name through the alias table.
func (r *Repository) CanonicalInsurer(name string) (string, bool) {
	canonical, ok := r.aliases[NormalizeInsurer(name)]
	return canonical, ok
}

// Lookup returns the rule for the insurer and category, falling back to the
// insurer's general rule, then to an empty rule for unknown insurers. It never
// fails and the returned rule does not share memory with the table.
func (r *Repository) Lookup(insurer, category string) domain.InsuranceRule {
	canonical, ok := r.CanonicalInsurer(insurer)
	if !ok {
		return emptyRule()
	}
	byCategory := r.rules[canonical]
	rule, ok := byCategory[category]
	if !ok {
		rule = byCategory[domain.CategoryGeneral]
	}
	return cloneRule(rule)
}

// Insurers returns the canonical insurer names in table order.
func (r *Repository) Insurers() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Categories returns the sorted rule keys declared for an insurer.
func (r *Repository) Categories(insurer string) []string {
	canonical, ok := r.CanonicalInsurer(insurer)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(r.rules[canonical]))
	for category := range r.rules[canonical] {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

func emptyRule() domain.InsuranceRule {
	return domain.InsuranceRule{
		RequiredDocuments:   []string{},
		DenialReasons:       []string{},
		MinimumRequirements: []domain.RequirementToken{},
	}
}

func cloneRule(rule domain.InsuranceRule) domain.InsuranceRule {
	rule.RequiredDocuments = append([]string{}, rule.RequiredDocuments...)
	rule.DenialReasons = append([]string{}, rule.DenialReasons...)
	rule.MinimumRequirements = append([]domain.RequirementToken{}, rule.MinimumRequirements...)
	return rule
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
