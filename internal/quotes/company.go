package quotes

import (
	"fmt"

	"github.com/odyssey-erp/bizportal/internal/session"
)

// CompanyTier tells which source supplied the resolved company.
type CompanyTier int

const (
	TierNone CompanyTier = iota
	TierPlan
	TierSelected
	TierUser
)

func (t CompanyTier) String() string {
	switch t {
	case TierPlan:
		return "plan"
	case TierSelected:
		return "selected"
	case TierUser:
		return "user"
	default:
		return "none"
	}
}

// ResolveCompany picks the billing company: the plan's own company, then the cached
// header selection, then the user's first company. When all fail the result has a null
// CompanyID and an empty name. Errors describe skipped tiers and never abort resolution.
func ResolveCompany(plan PlanSelection, store session.Store, user *SessionUser) (CompanyRef, CompanyTier, error) {
	if plan.SelectedCompany != nil && plan.SelectedCompany.CompanyID.Usable() {
		return *plan.SelectedCompany, TierPlan, nil
	}

	var cachedErr error
	if store != nil {
		var cached CompanyRef
		if err := store.Get(session.KeySelectedCompany).Decode(&cached); err != nil {
			cachedErr = classify(session.KeySelectedCompany, err)
		} else if cached.CompanyID.Usable() {
			return cached, TierSelected, nil
		} else {
			cachedErr = fmt.Errorf("%w: %q has no company id", ErrResolutionDegraded, session.KeySelectedCompany)
		}
	}

	if user != nil && len(user.Companies) > 0 {
		first := user.Companies[0]
		return CompanyRef{
			CompanyID:   first.CompanyID,
			CompanyName: firstNonEmpty(first.BusinessName, first.CompanyName),
		}, TierUser, nil
	}

	if cachedErr != nil {
		return CompanyRef{}, TierNone, fmt.Errorf("no company resolved: %w", cachedErr)
	}
	return CompanyRef{}, TierNone, fmt.Errorf("%w: no company resolved", ErrResolutionDegraded)
}
