// Package quotes composes the canonical quote payload from a portal visitor's session and
// plan selection, submits it upstream and folds the returned quote list back into the
// session.
package quotes

import "encoding/json"

// Quote is a quote record exactly as the upstream API returns it.
type Quote map[string]any

// CompanyID returns the company the quote belongs to.
func (q Quote) CompanyID() ID {
	return idOf(q["CompanyID"])
}

// Agent is the servicing employee (CRE) tied to a company.
type Agent struct {
	EmployeeID   ID     `json:"EmployeeID"`
	EmployeeName string `json:"EmployeeName"`
}

// Company is a company attached to the session user. CompanyName and BusinessName label
// the same thing depending on where the record came from.
type Company struct {
	CompanyID    ID      `json:"CompanyID"`
	CompanyName  string  `json:"CompanyName,omitempty"`
	BusinessName string  `json:"BusinessName,omitempty"`
	FranchiseeID ID      `json:"FranchiseeID"`
	Agents       []Agent `json:"Agents,omitempty"`
	Quotes       []Quote `json:"Quotes,omitempty"`
}

// SessionUser is the logged-in actor as stored at login or signup.
type SessionUser struct {
	CustomerID ID     `json:"CustomerID"`
	FirstName  string `json:"FirstName,omitempty"`
	LastName   string `json:"LastName,omitempty"`
	Email      string `json:"Email,omitempty"`
	// Both spellings occur in stored records.
	FranchiseeId ID        `json:"FranchiseeId"`
	FranchiseeID ID        `json:"FranchiseeID"`
	Companies    []Company `json:"Companies,omitempty"`
}

// CompanyRef identifies the billing company of a quote.
type CompanyRef struct {
	CompanyID   ID     `json:"CompanyID"`
	CompanyName string `json:"CompanyName"`
}

// ServiceOffer is a catalogue service as selected in the portal. Each fee comes either flat
// or as a yearly variant.
type ServiceOffer struct {
	ServiceID             ID     `json:"ServiceID"`
	ServiceName           string `json:"ServiceName"`
	ProfessionalFee       Amount `json:"ProfessionalFee"`
	ProfessionalFeeYearly Amount `json:"ProfessionalFeeYearly"`
	VendorFee             Amount `json:"VendorFee"`
	VendorFeeYearly       Amount `json:"VendorFeeYearly"`
	GovernmentFee         Amount `json:"GovernmentFee"`
	GovernmentFeeYearly   Amount `json:"GovernmentFeeYearly"`
	TotalFee              Amount `json:"TotalFee"`
	TotalFeeYearly        Amount `json:"TotalFeeYearly"`
}

// PlanSelection is either a package purchase or a custom bundle of services.
type PlanSelection struct {
	ID              ID
	Name            string
	Services        []ServiceOffer
	IsAssociate     bool
	AssociateID     ID
	SelectedCompany *CompanyRef
}

type planWire struct {
	ID              ID             `json:"id"`
	PackageID       ID             `json:"packageId"`
	Name            string         `json:"name"`
	PackageNameUp   string         `json:"PackageName"`
	PackageNameLow  string         `json:"packageName"`
	Services        []ServiceOffer `json:"services"`
	IsAssociate     bool           `json:"isAssociate"`
	AssociateID     ID             `json:"AssociateID"`
	SelectedCompany *CompanyRef    `json:"SelectedCompany"`
}

// UnmarshalJSON accepts the field aliases used by the package and service pickers.
func (p *PlanSelection) UnmarshalJSON(data []byte) error {
	var w planWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = PlanSelection{
		ID:              w.ID.Or(w.PackageID),
		Name:            firstNonEmpty(w.Name, w.PackageNameUp, w.PackageNameLow),
		Services:        w.Services,
		IsAssociate:     w.IsAssociate,
		AssociateID:     w.AssociateID,
		SelectedCompany: w.SelectedCompany,
	}
	return nil
}

// MarshalJSON writes the canonical field names.
func (p PlanSelection) MarshalJSON() ([]byte, error) {
	return json.Marshal(planWire{
		ID:              p.ID,
		Name:            p.Name,
		Services:        p.Services,
		IsAssociate:     p.IsAssociate,
		AssociateID:     p.AssociateID,
		SelectedCompany: p.SelectedCompany,
	})
}

// CanonicalLineItem is one normalized fee line of a quote.
type CanonicalLineItem struct {
	ServiceID       ID      `json:"ServiceID"`
	ItemName        string  `json:"ItemName"`
	ProfessionalFee float64 `json:"ProfessionalFee"`
	VendorFee       float64 `json:"VendorFee"`
	GovtFee         float64 `json:"GovtFee"`
	ContractorFee   float64 `json:"ContractorFee"`
	GSTPercent      float64 `json:"GSTPercent"`
	Discount        float64 `json:"Discount"`
	Rounding        float64 `json:"Rounding"`
	Total           float64 `json:"Total"`
	AdvanceAmount   float64 `json:"AdvanceAmount"`
	PendingAmount   float64 `json:"PendingAmount"`
}

// Customer is the quoted customer.
type Customer struct {
	CustomerID   ID     `json:"CustomerID"`
	CustomerName string `json:"CustomerName"`
}

// MailRecipient receives the quote by mail.
type MailRecipient struct {
	CustomerID   ID     `json:"CustomerID"`
	CustomerName string `json:"CustomerName"`
	Email        string `json:"Email"`
}

// QuotePayload is the body submitted to the quote creation endpoint. This builder only
// creates quotes, so ParentQuoteID and QuoteID are always null.
type QuotePayload struct {
	ParentQuoteID      ID                  `json:"ParentQuoteID"`
	QuoteID            ID                  `json:"QuoteID"`
	SelectedCompany    CompanyRef          `json:"SelectedCompany"`
	SelectedCustomer   Customer            `json:"SelectedCustomer"`
	QuoteCRE           Agent               `json:"QuoteCRE"`
	FranchiseeID       ID                  `json:"FranchiseeID"`
	SourceOfSale       string              `json:"SourceOfSale"`
	Remarks            string              `json:"Remarks"`
	IsIndividual       int                 `json:"IsIndividual"`
	PackageID          ID                  `json:"PackageID"`
	PackageName        string              `json:"PackageName"`
	IsMonthly          int                 `json:"IsMonthly"`
	QuoteStatus        string              `json:"QuoteStatus"`
	ServiceDetails     []CanonicalLineItem `json:"ServiceDetails"`
	IsDirect           int                 `json:"IsDirect"`
	MailQuoteCustomers []MailRecipient     `json:"MailQuoteCustomers"`
	IsAssociate        bool                `json:"isAssociate"`
	AssociateID        ID                  `json:"AssociateID"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
