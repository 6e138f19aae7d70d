package rules

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"licenseiq/internal/domain"
)

// Rule packs are the YAML interchange format for seeding a repository:
//
//	pack_version: "2026-08"
//	rules:
//	  - rule_id: R1
//	    version: 3
//	    tenant_id: acme
//	    state: production
//	    action: BLOCK
//	    reason_code: ECCN_3A_EXPORT
//	    citation: "EAR 742.4(a)"
//	    predicate:
//	      op: prefix
//	      field: product.eccn
//	      value: "3A"

type pack struct {
	PackVersion string     `yaml:"pack_version"`
	Rules       []packRule `yaml:"rules"`
}

type packRule struct {
	RuleID          string   `yaml:"rule_id"`
	Version         int      `yaml:"version"`
	TenantID        string   `yaml:"tenant_id"`
	State           string   `yaml:"state"`
	Action          string   `yaml:"action"`
	ReasonCode      string   `yaml:"reason_code"`
	Citation        string   `yaml:"citation"`
	TrafficFraction float64  `yaml:"traffic_fraction"`
	DeMinimisPct    *float64 `yaml:"de_minimis_threshold_pct"`
	Predicate       *Expr    `yaml:"predicate"`
}

// LoadPack parses and validates a YAML rule pack.
func LoadPack(r io.Reader) ([]Rule, error) {
	var p pack
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode rule pack: %w", err)
	}

	loaded := make([]Rule, 0, len(p.Rules))
	now := time.Now()
	for i, pr := range p.Rules {
		rule := Rule{
			RuleID:                pr.RuleID,
			Version:               pr.Version,
			TenantID:              pr.TenantID,
			State:                 LifecycleState(pr.State),
			Predicate:             pr.Predicate,
			Action:                domain.Outcome(pr.Action),
			ReasonCode:            pr.ReasonCode,
			Citation:              pr.Citation,
			TrafficFraction:       pr.TrafficFraction,
			DeMinimisThresholdPct: pr.DeMinimisPct,
			CreatedAt:             now,
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule pack entry %d: %w", i, err)
		}
		loaded = append(loaded, rule)
	}
	return loaded, nil
}

// LoadPackFile reads a rule pack from disk and loads every entry into the
// store. Used at startup when RULE_PACK_PATH is set.
func LoadPackFile(path string, seed func(Rule) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open rule pack: %w", err)
	}
	defer f.Close()

	loaded, err := LoadPack(f)
	if err != nil {
		return 0, err
	}
	for _, rule := range loaded {
		if err := seed(rule); err != nil {
			return 0, fmt.Errorf("seed rule %s v%d: %w", rule.RuleID, rule.Version, err)
		}
	}
	return len(loaded), nil
}
