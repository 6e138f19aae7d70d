// Package determine implements the compliance determination engine: it
// evaluates one order against the active rule set and master data and
// produces an ALLOW/REVIEW/BLOCK Decision with citations.
package determine

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"licenseiq/internal/controls"
	"licenseiq/internal/domain"
	"licenseiq/internal/rules"
)

// Engine is the pure evaluation core. It performs no I/O: every fact it
// needs arrives as an argument, and the only clock it sees is the injected
// as-of instant. Determinism here is what makes simulation trustworthy.
type Engine struct {
	deMinimisDefaultPct float64
}

func NewEngine(deMinimisDefaultPct float64) *Engine {
	return &Engine{deMinimisDefaultPct: deMinimisDefaultPct}
}

// Evidence is the resolved master data for one line, including how the
// resolution went. A nil record with a nil error means the reference simply
// does not exist; Timeout marks a lookup that exceeded its deadline.
type Evidence struct {
	Party   *domain.Party
	Product *domain.Product
	Timeout bool
}

// CanaryLive reports whether an order falls inside a canary's live traffic
// slice. The FNV-1a hash of the order ID modulo 100 is compared against the
// fraction, so the same order always routes the same way for a fixed
// fraction, regardless of node or process.
func CanaryLive(orderID string, trafficFraction float64) bool {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	bucket := h.Sum32() % 100
	return float64(bucket) < trafficFraction*100
}

// EvaluateLine produces the outcome for a single line item. Lines are
// independent: nothing here reads or writes state shared with another line.
func (e *Engine) EvaluateLine(
	order domain.Order,
	line domain.LineItem,
	evidence Evidence,
	ruleSet []rules.Rule,
	snapshot *controls.Snapshot,
	asOf time.Time,
) domain.LineOutcome {
	outcome := domain.LineOutcome{LineNo: line.LineNo}

	// Degraded-dependency paths first: they decide the line without rules.
	if evidence.Timeout {
		outcome.Outcome = domain.OutcomeReview
		outcome.ReasonCode = domain.ReasonDependencyTimeout
		outcome.Why = "master data lookup timed out; evaluated without a resolved record"
		outcome.Fix = "retry once master data is reachable"
		return outcome
	}
	if evidence.Party == nil || evidence.Product == nil {
		outcome.Outcome = domain.OutcomeReview
		outcome.ReasonCode = domain.ReasonUnresolvedReference
		outcome.Why = unresolvedWhy(order, line, evidence)
		outcome.Fix = "verify the reference or sync the master data snapshot"
		return outcome
	}

	// Screening hit short-circuits rule evaluation for this line. Other
	// lines in the order still evaluate independently.
	if evidence.Party.IsScreeningHit() {
		outcome.Outcome = domain.OutcomeBlock
		outcome.ReasonCode = domain.ReasonScreeningHit
		outcome.Why = fmt.Sprintf("party %s has an active screening hit", evidence.Party.PartyID)
		outcome.Fix = "resolve the screening case before resubmitting"
		return outcome
	}

	facts := buildFacts(order, line, *evidence.Party, *evidence.Product)

	// Controlled-content percentage is computed once from the control list
	// in force at the as-of instant; the per-rule de-minimis threshold then
	// decides whether the line counts as controlled for that rule.
	var controlledPct float64
	var origins map[string]bool
	if snapshot != nil && snapshot.ValidAt(asOf) {
		origins = snapshot.ControlledOrigins(order.ShipToCountry)
		controlledPct = evidence.Product.ControlledContentPct(origins)
	}
	facts["line.controlled_content_pct"] = controlledPct

	effectiveOrigin := line.OriginCountryOverride
	if effectiveOrigin == "" {
		effectiveOrigin = evidence.Product.OriginCountry
	}
	originControlled := origins[effectiveOrigin]

	var matched []rules.Rule
	for _, rule := range ruleSet {
		live := true
		switch rule.State {
		case rules.StateShadow:
			live = false
		case rules.StateCanary:
			live = CanaryLive(order.OrderID, rule.TrafficFraction)
		}

		// De-minimis exceedance makes the line controlled regardless of
		// nominal origin. The threshold is rule-overridable, so the fact is
		// recomputed per rule.
		threshold := e.deMinimisDefaultPct
		if rule.DeMinimisThresholdPct != nil {
			threshold = *rule.DeMinimisThresholdPct
		}
		facts["line.controlled"] = originControlled || controlledPct > threshold

		match, err := rule.Predicate.Eval(facts)
		if err != nil || !match {
			// An eval error means a broken rule definition; it cannot match.
			// Submit-time validation keeps this path rare.
			continue
		}

		if live {
			matched = append(matched, rule)
			outcome.MatchedRuleIDs = append(outcome.MatchedRuleIDs, rule.RuleID)
		} else {
			outcome.ShadowRuleIDs = append(outcome.ShadowRuleIDs, rule.RuleID)
		}
	}

	if len(matched) == 0 {
		outcome.Outcome = domain.OutcomeAllow
		outcome.ReasonCode = domain.ReasonNoRuleMatched
		return outcome
	}

	// Most restrictive action wins; every matched rule stays cited.
	dominant := matched[0]
	for _, rule := range matched[1:] {
		if domain.MostRestrictive(dominant.Action, rule.Action) != dominant.Action {
			dominant = rule
		}
	}
	outcome.Outcome = dominant.Action
	outcome.ReasonCode = dominant.ReasonCode
	outcome.Why = describeMatches(matched, dominant)
	outcome.Fix = suggestedFix(dominant.Action)
	return outcome
}

func unresolvedWhy(order domain.Order, line domain.LineItem, evidence Evidence) string {
	var missing []string
	if evidence.Party == nil {
		missing = append(missing, fmt.Sprintf("party %s", order.BuyerPartyRef))
	}
	if evidence.Product == nil {
		missing = append(missing, fmt.Sprintf("product %s", line.ProductRef))
	}
	return strings.Join(missing, " and ") + " not found in master data"
}

func describeMatches(matched []rules.Rule, dominant rules.Rule) string {
	citations := make([]string, 0, len(matched))
	for _, rule := range matched {
		if rule.Citation != "" {
			citations = append(citations, fmt.Sprintf("%s (%s)", rule.RuleID, rule.Citation))
		} else {
			citations = append(citations, rule.RuleID)
		}
	}
	sort.Strings(citations)
	return fmt.Sprintf("matched %s; outcome set by %s", strings.Join(citations, ", "), dominant.RuleID)
}

func suggestedFix(action domain.Outcome) string {
	switch action {
	case domain.OutcomeBlock:
		return "obtain the required export license or remove the controlled line"
	case domain.OutcomeReview:
		return "route to compliance review"
	default:
		return ""
	}
}
