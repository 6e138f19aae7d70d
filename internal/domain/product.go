package domain

// ControlReason tags why a product is export controlled.
type ControlReason string

const (
	ControlDualUse      ControlReason = "dual_use"
	ControlMilitary     ControlReason = "military"
	ControlEncryption   ControlReason = "encryption"
	ControlNuclear      ControlReason = "nuclear"
	ControlChemBio      ControlReason = "chem_bio"
	ControlMissileTech  ControlReason = "missile_tech"
	ControlRegionalStab ControlReason = "regional_stability"
)

// Product is a master-data record. Same ownership model as Party: read-only
// snapshot per evaluation.
type Product struct {
	MaterialID    string
	HSCode        string
	ECCN          string
	DualUseFlag   bool
	OriginCountry string

	// BOMPercentages maps component origin country to its percent of the
	// bill of materials. Sums to at most 100; the remainder is uncontrolled
	// or unattributed content. Input to the de-minimis computation.
	BOMPercentages map[string]float64

	ControlledReasons []ControlReason
}

// ControlledContentPct sums the BOM percentages whose origin country is in
// the given controlled-origin set.
func (p Product) ControlledContentPct(controlledOrigins map[string]bool) float64 {
	var sum float64
	for origin, pct := range p.BOMPercentages {
		if controlledOrigins[origin] {
			sum += pct
		}
	}
	return sum
}
