package handler

import (
	"licenseiq/internal/domain"
)

// EvaluateOrderRequest is the POST /determine body.
type EvaluateOrderRequest struct {
	OrderID       string        `json:"order_id"`
	BuyerPartyRef string        `json:"buyer_party_ref"`
	ShipToCountry string        `json:"ship_to_country"`
	Incoterms     string        `json:"incoterms,omitempty"`
	Lines         []LineRequest `json:"lines"`
}

// LineRequest is one order line in the evaluate request.
type LineRequest struct {
	LineNo                int     `json:"line_no"`
	ProductRef            string  `json:"product_ref"`
	Quantity              float64 `json:"quantity"`
	UnitValue             float64 `json:"unit_value"`
	OriginCountryOverride string  `json:"origin_country_override,omitempty"`
}

// ToOrder maps the request onto the domain order.
func (r *EvaluateOrderRequest) ToOrder() domain.Order {
	lines := make([]domain.LineItem, 0, len(r.Lines))
	for _, line := range r.Lines {
		lines = append(lines, domain.LineItem{
			LineNo:                line.LineNo,
			ProductRef:            line.ProductRef,
			Quantity:              line.Quantity,
			UnitValue:             line.UnitValue,
			OriginCountryOverride: line.OriginCountryOverride,
		})
	}
	return domain.Order{
		OrderID:       r.OrderID,
		BuyerPartyRef: r.BuyerPartyRef,
		ShipToCountry: r.ShipToCountry,
		Incoterms:     r.Incoterms,
		Lines:         lines,
	}
}

// Validate reports every problem with the order at once, so callers fix one
// round trip, not one field.
func (r *EvaluateOrderRequest) Validate() error {
	order := r.ToOrder()
	return order.Validate()
}
