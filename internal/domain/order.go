package domain

import (
	"fmt"

	dErrors "licenseiq/pkg/domain-errors"
)

// Order is the unit of evaluation. Immutable once submitted: the engine never
// writes back to it, and re-evaluation produces a new Decision.
type Order struct {
	OrderID       string
	Lines         []LineItem
	BuyerPartyRef string
	ShipToCountry string
	Incoterms     string
}

// LineItem belongs to exactly one Order. OriginCountryOverride, when set,
// replaces the product's nominal origin for control-list checks.
type LineItem struct {
	LineNo                int
	ProductRef            string
	Quantity              float64
	UnitValue             float64
	OriginCountryOverride string
}

// Validate rejects malformed orders before any evaluation work starts.
// A failed validation records nothing: no Decision, no audit event.
func (o Order) Validate() error {
	var details []string

	if o.OrderID == "" {
		details = append(details, "order_id is required")
	}
	if o.BuyerPartyRef == "" {
		details = append(details, "buyer_party_ref is required")
	}
	if len(o.ShipToCountry) != 2 {
		details = append(details, "ship_to_country must be a 2-letter country code")
	}
	if len(o.Lines) == 0 {
		details = append(details, "at least one line item is required")
	}

	seen := make(map[int]bool, len(o.Lines))
	for _, line := range o.Lines {
		if line.LineNo <= 0 {
			details = append(details, fmt.Sprintf("line %d: line_no must be positive", line.LineNo))
		}
		if seen[line.LineNo] {
			details = append(details, fmt.Sprintf("line %d: duplicate line_no", line.LineNo))
		}
		seen[line.LineNo] = true
		if line.ProductRef == "" {
			details = append(details, fmt.Sprintf("line %d: product_ref is required", line.LineNo))
		}
		if line.Quantity <= 0 {
			details = append(details, fmt.Sprintf("line %d: quantity must be positive", line.LineNo))
		}
		if line.UnitValue < 0 {
			details = append(details, fmt.Sprintf("line %d: unit_value must not be negative", line.LineNo))
		}
	}

	if len(details) > 0 {
		return dErrors.New(dErrors.CodeValidation, "invalid order").WithDetails(details...)
	}
	return nil
}
