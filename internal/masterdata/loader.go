package masterdata

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"licenseiq/internal/domain"
)

// pack is the YAML form of a master data seed:
//
//	parties:
//	  - party_id: party-1
//	    country: DE
//	    type: end-user
//	    screening_status: cleared
//	    risk_score: 12
//	products:
//	  - material_id: mat-1
//	    hs_code: "8542.31"
//	    eccn: 3A001
//	    dual_use: true
//	    origin_country: DE
//	    bom_percentages:
//	      US: 30
//	      DE: 70
type pack struct {
	Parties  []packParty   `yaml:"parties"`
	Products []packProduct `yaml:"products"`
}

type packParty struct {
	PartyID         string            `yaml:"party_id"`
	ExternalIDs     map[string]string `yaml:"external_ids"`
	Country         string            `yaml:"country"`
	Type            string            `yaml:"type"`
	ScreeningStatus string            `yaml:"screening_status"`
	RiskScore       float64           `yaml:"risk_score"`
}

type packProduct struct {
	MaterialID     string             `yaml:"material_id"`
	HSCode         string             `yaml:"hs_code"`
	ECCN           string             `yaml:"eccn"`
	DualUse        bool               `yaml:"dual_use"`
	OriginCountry  string             `yaml:"origin_country"`
	BOMPercentages map[string]float64 `yaml:"bom_percentages"`
	Reasons        []string           `yaml:"controlled_reasons"`
}

// LoadSeed reads parties and products from YAML into the store.
func LoadSeed(r io.Reader, store *InMemoryStore) (int, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var p pack
	if err := decoder.Decode(&p); err != nil {
		return 0, fmt.Errorf("master data: decode: %w", err)
	}

	for i, party := range p.Parties {
		if party.PartyID == "" {
			return 0, fmt.Errorf("master data: party %d: party_id is required", i)
		}
		store.PutParty(domain.Party{
			PartyID:         party.PartyID,
			ExternalIDs:     party.ExternalIDs,
			Country:         party.Country,
			Type:            domain.PartyType(party.Type),
			ScreeningStatus: domain.ScreeningStatus(party.ScreeningStatus),
			RiskScore:       party.RiskScore,
		})
	}
	for i, product := range p.Products {
		if product.MaterialID == "" {
			return 0, fmt.Errorf("master data: product %d: material_id is required", i)
		}
		reasons := make([]domain.ControlReason, 0, len(product.Reasons))
		for _, reason := range product.Reasons {
			reasons = append(reasons, domain.ControlReason(reason))
		}
		store.PutProduct(domain.Product{
			MaterialID:        product.MaterialID,
			HSCode:            product.HSCode,
			ECCN:              product.ECCN,
			DualUseFlag:       product.DualUse,
			OriginCountry:     product.OriginCountry,
			BOMPercentages:    product.BOMPercentages,
			ControlledReasons: reasons,
		})
	}
	return len(p.Parties) + len(p.Products), nil
}

// LoadSeedFile reads a master data seed from a file path.
func LoadSeedFile(path string, store *InMemoryStore) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("master data: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadSeed(f, store)
}
