package quotes

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/odyssey-erp/bizportal/internal/session"
)

// ReconcileTarget picks the company whose cached quotes are replaced: the company echoed
// by the first returned quote, else the company the payload was built for.
func ReconcileTarget(quotes []Quote, resolved ID) ID {
	if len(quotes) == 0 {
		return resolved
	}
	return quotes[0].CompanyID().Or(resolved)
}

// Reconcile replaces the Quotes of every cached company matching companyID with the
// server's list and writes the user back to the slot it was read from. Fields of the
// cached user that this package does not model are preserved.
func Reconcile(store session.Store, companyID ID, quotes []Quote) error {
	if len(quotes) == 0 {
		return ErrNothingToReconcile
	}
	if store == nil {
		return fmt.Errorf("%w: no session store", ErrReconciliation)
	}
	if companyID.IsNull() {
		return fmt.Errorf("%w: no company to reconcile", ErrReconciliation)
	}

	var (
		user map[string]any
		key  string
		errs []error
	)
	for _, k := range UserKeys {
		var candidate map[string]any
		if err := store.Get(k).Decode(&candidate); err != nil {
			errs = append(errs, classify(k, err))
			continue
		}
		user, key = candidate, k
		break
	}
	if user == nil {
		return fmt.Errorf("%w: %w", ErrReconciliation, errors.Join(errs...))
	}

	companies, _ := user["Companies"].([]any)
	matched := 0
	for _, c := range companies {
		company, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if !idOf(company["CompanyID"]).Same(companyID) {
			continue
		}
		company["Quotes"] = quotes
		matched++
	}
	if matched == 0 {
		return fmt.Errorf("%w: company %s not cached for user", ErrReconciliation, companyID)
	}

	if err := store.Set(key, user); err != nil {
		return fmt.Errorf("%w: persist %q: %v", ErrReconciliation, key, err)
	}
	return nil
}

func idOf(v any) ID {
	var id ID
	raw, err := json.Marshal(v)
	if err != nil {
		return ID{}
	}
	if err := id.UnmarshalJSON(raw); err != nil {
		return ID{}
	}
	return id
}
