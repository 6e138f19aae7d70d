package determine

import (
	"strings"

	"licenseiq/internal/domain"
	"licenseiq/internal/rules"
)

// buildFacts flattens an order line and its resolved master data into the
// dotted-key fact map the predicate interpreter reads. Computed facts
// (line.controlled, line.controlled_content_pct) are layered on by the
// engine, since they depend on the rule under evaluation.
func buildFacts(order domain.Order, line domain.LineItem, party domain.Party, product domain.Product) rules.Facts {
	origin := line.OriginCountryOverride
	if origin == "" {
		origin = product.OriginCountry
	}

	reasons := make([]string, 0, len(product.ControlledReasons))
	for _, reason := range product.ControlledReasons {
		reasons = append(reasons, string(reason))
	}
	// Joined so contains-style predicates can search it.
	joinedReasons := strings.Join(reasons, ",")

	return rules.Facts{
		"order.order_id":        order.OrderID,
		"order.ship_to_country": order.ShipToCountry,
		"order.incoterms":       order.Incoterms,

		"line.line_no":        line.LineNo,
		"line.quantity":       line.Quantity,
		"line.unit_value":     line.UnitValue,
		"line.origin_country": origin,

		"party.party_id":         party.PartyID,
		"party.country":          party.Country,
		"party.party_type":       string(party.Type),
		"party.screening_status": string(party.ScreeningStatus),
		"party.risk_score":       party.RiskScore,

		"product.material_id":        product.MaterialID,
		"product.hs_code":            product.HSCode,
		"product.eccn":               product.ECCN,
		"product.dual_use_flag":      product.DualUseFlag,
		"product.origin_country":     product.OriginCountry,
		"product.controlled_reasons": joinedReasons,
	}
}
