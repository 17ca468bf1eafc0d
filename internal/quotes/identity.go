package quotes

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/bizportal/internal/session"
)

// UserKeys lists the session slots consulted for the acting user, in order.
var UserKeys = []string{session.KeyUser, session.KeyPartnerUser}

// Identity is the acting user together with the agent and franchisee derived from it.
type Identity struct {
	User         *SessionUser
	AgentID      ID
	AgentName    string
	FranchiseeID ID
	Email        string
}

// ResolveIdentity reads the acting user from the store. It always returns a usable
// Identity; the error reports why parts of it are empty and is safe to discard.
func ResolveIdentity(store session.Store) (Identity, error) {
	user, key, err := loadUser(store)
	if user == nil {
		return Identity{}, err
	}

	ident := Identity{
		User:         user,
		Email:        user.Email,
		FranchiseeID: user.FranchiseeId.Or(user.FranchiseeID),
	}
	if len(user.Companies) == 0 {
		return ident, fmt.Errorf("%w: user in %q has no companies", ErrResolutionDegraded, key)
	}
	first := user.Companies[0]
	ident.FranchiseeID = ident.FranchiseeID.Or(first.FranchiseeID)
	if len(first.Agents) == 0 {
		return ident, fmt.Errorf("%w: company %s has no agents", ErrResolutionDegraded, first.CompanyID)
	}
	ident.AgentID = first.Agents[0].EmployeeID
	ident.AgentName = first.Agents[0].EmployeeName
	return ident, nil
}

// loadUser returns the user stored in the first slot that decodes, along with that slot's
// key. Failures of every slot are joined.
func loadUser(store session.Store) (*SessionUser, string, error) {
	if store == nil {
		return nil, "", fmt.Errorf("%w: no session store", ErrResolutionDegraded)
	}
	var errs []error
	for _, key := range UserKeys {
		var user SessionUser
		err := store.Get(key).Decode(&user)
		if err == nil {
			return &user, key, nil
		}
		errs = append(errs, classify(key, err))
	}
	return nil, "", errors.Join(errs...)
}

func classify(key string, err error) error {
	if errors.Is(err, session.ErrAbsent) {
		return fmt.Errorf("%w: %q not set", ErrResolutionDegraded, key)
	}
	return fmt.Errorf("%w: %q: %v", ErrRecoverableParse, key, err)
}
