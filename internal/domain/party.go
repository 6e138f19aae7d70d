package domain

// PartyType classifies the role a party plays in a trade.
type PartyType string

const (
	PartyEndUser  PartyType = "end-user"
	PartyReseller PartyType = "reseller"
	PartyCarrier  PartyType = "carrier"
	PartyBroker   PartyType = "broker"
)

// ScreeningStatus is the party's standing against the active screening lists.
type ScreeningStatus string

const (
	ScreeningCleared ScreeningStatus = "cleared"
	ScreeningPending ScreeningStatus = "pending"
	ScreeningHit     ScreeningStatus = "hit"
)

// Address is the structured address carried on master data records.
type Address struct {
	Street     string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Party is a master-data record. The engine holds a read-only snapshot
// reference per evaluation and never mutates it.
type Party struct {
	PartyID         string
	ExternalIDs     map[string]string
	Address         Address
	Country         string
	Type            PartyType
	ScreeningStatus ScreeningStatus
	RiskScore       float64 // 0-100
}

// IsScreeningHit reports whether the party forces a BLOCK on every line that
// references it.
func (p Party) IsScreeningHit() bool {
	return p.ScreeningStatus == ScreeningHit
}
