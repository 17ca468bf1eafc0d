package quotes

import (
	"encoding/json"
	"strings"
)

// Cached session records are written by several portal flows and do not always agree on
// field types. The decoders below read each field on its own: a mistyped field is left at
// its zero value and the rest of the record survives. Only a record that is not a JSON
// object at all is an error.

type objectFields map[string]json.RawMessage

func decodeObject(data []byte) (objectFields, error) {
	var fields objectFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// lookup finds key exactly, then case-insensitively as encoding/json would.
func (f objectFields) lookup(key string) (json.RawMessage, bool) {
	if raw, ok := f[key]; ok {
		return raw, true
	}
	for k, raw := range f {
		if strings.EqualFold(k, key) {
			return raw, true
		}
	}
	return nil, false
}

// into decodes key into dst and ignores type mismatches.
func (f objectFields) into(key string, dst any) {
	if raw, ok := f.lookup(key); ok {
		_ = json.Unmarshal(raw, dst)
	}
}

// decodeList decodes a JSON array element by element. Elements that fail to decode stay
// at their zero value so positions are kept. A value that is not an array yields nil.
func decodeList[T any](raw json.RawMessage, ok bool) []T {
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]T, len(items))
	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err == nil {
			out[i] = v
		}
	}
	return out
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Agent) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*a = Agent{}
	fields.into("EmployeeID", &a.EmployeeID)
	fields.into("EmployeeName", &a.EmployeeName)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Company) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*c = Company{}
	fields.into("CompanyID", &c.CompanyID)
	fields.into("CompanyName", &c.CompanyName)
	fields.into("BusinessName", &c.BusinessName)
	fields.into("FranchiseeID", &c.FranchiseeID)
	c.Agents = decodeList[Agent](fields.lookup("Agents"))
	for _, q := range decodeList[map[string]any](fields.lookup("Quotes")) {
		if q != nil {
			c.Quotes = append(c.Quotes, Quote(q))
		}
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *SessionUser) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*u = SessionUser{}
	fields.into("CustomerID", &u.CustomerID)
	fields.into("FirstName", &u.FirstName)
	fields.into("LastName", &u.LastName)
	fields.into("Email", &u.Email)
	// FranchiseeId and FranchiseeID differ only by case, so match them exactly.
	if raw, ok := fields["FranchiseeId"]; ok {
		_ = json.Unmarshal(raw, &u.FranchiseeId)
	}
	if raw, ok := fields["FranchiseeID"]; ok {
		_ = json.Unmarshal(raw, &u.FranchiseeID)
	}
	u.Companies = decodeList[Company](fields.lookup("Companies"))
	return nil
}
