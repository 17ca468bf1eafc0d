package quotes

import (
	"strings"

	"github.com/odyssey-erp/bizportal/internal/session"
)

// Fallbacks applied when the session cannot supply a value.
var (
	DefaultAgentID      = IntID(9)
	DefaultFranchiseeID = IntID(43)
	GuestCustomer       = MailRecipient{CustomerID: IntID(2), CustomerName: "John Doe", Email: "john@example.com"}
)

const (
	SourceAssociate = "Associate"
	SourceWebsite   = "Website"
	StatusDraft     = "Draft"
)

// Resolution stages that may degrade.
const (
	StageIdentity = "identity"
	StageCompany  = "company"
)

// Degradation explains why a stage fell back to defaults.
type Degradation struct {
	Stage string
	Err   error
}

// Build is the outcome of assembling a payload. Degradations never make the payload
// unusable.
type Build struct {
	Payload      QuotePayload
	Identity     Identity
	Company      CompanyRef
	CompanyTier  CompanyTier
	Degradations []Degradation
}

// BuildPayload derives the canonical quote payload from the plan and the session state.
// It only reads from the store and generates no IDs or timestamps, so identical inputs
// give identical payloads.
func BuildPayload(plan PlanSelection, store session.Store) Build {
	var b Build

	ident, err := ResolveIdentity(store)
	b.Identity = ident
	if err != nil {
		b.Degradations = append(b.Degradations, Degradation{Stage: StageIdentity, Err: err})
	}

	company, tier, err := ResolveCompany(plan, store, ident.User)
	b.Company, b.CompanyTier = company, tier
	if err != nil {
		b.Degradations = append(b.Degradations, Degradation{Stage: StageCompany, Err: err})
	}

	recipient := GuestCustomer
	if u := ident.User; u != nil {
		recipient = MailRecipient{
			CustomerID:   u.CustomerID,
			CustomerName: strings.TrimSpace(u.FirstName + " " + u.LastName),
			Email:        ident.Email,
		}
	}

	source := SourceWebsite
	if plan.IsAssociate {
		source = SourceAssociate
	}

	var remarks string
	if plan.Name != "" {
		remarks = "Quote for " + plan.Name
	}

	b.Payload = QuotePayload{
		SelectedCompany:    company,
		SelectedCustomer:   Customer{CustomerID: recipient.CustomerID, CustomerName: recipient.CustomerName},
		QuoteCRE:           Agent{EmployeeID: ident.AgentID.Or(DefaultAgentID), EmployeeName: ident.AgentName},
		FranchiseeID:       ident.FranchiseeID.Or(DefaultFranchiseeID),
		SourceOfSale:       source,
		Remarks:            remarks,
		IsIndividual:       0,
		PackageID:          plan.ID,
		PackageName:        plan.Name,
		IsMonthly:          0,
		QuoteStatus:        StatusDraft,
		ServiceDetails:     NormalizeServices(plan.Services),
		IsDirect:           1,
		MailQuoteCustomers: []MailRecipient{recipient},
		IsAssociate:        plan.IsAssociate,
		AssociateID:        plan.AssociateID,
	}
	return b
}
