// Package session holds the per-visitor portal state the quote builder reads from: the
// logged-in user blob and the company picked in the header switcher.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Well-known keys written by the login and company-switch flows.
const (
	KeyUser            = "user"
	KeyPartnerUser     = "partnerUser"
	KeySelectedCompany = "selectedCompany"
)

var (
	// ErrAbsent reports that a key holds nothing usable.
	ErrAbsent = errors.New("session: value absent")
	// ErrMalformed reports that a stored value could not be decoded.
	ErrMalformed = errors.New("session: value malformed")
)

// Store is the session-state service injected into the quote builder.
type Store interface {
	Get(key string) Raw
	Set(key string, value any) error
	Clear(key string) error
}

type rawKind uint8

const (
	rawNull rawKind = iota
	rawText
	rawValue
)

// Raw is a stored value as handed back by a Store: nothing, a serialized string, or an
// already structured Go value.
type Raw struct {
	kind  rawKind
	text  string
	value any
}

// Null returns the absent value.
func Null() Raw { return Raw{} }

// Text wraps a serialized value.
func Text(s string) Raw { return Raw{kind: rawText, text: s} }

// Value wraps a structured value. A nil value is absent.
func Value(v any) Raw {
	if v == nil {
		return Raw{}
	}
	if s, ok := v.(string); ok {
		return Text(s)
	}
	return Raw{kind: rawValue, value: v}
}

// IsNull reports whether the raw value is absent.
func (r Raw) IsNull() bool { return r.kind == rawNull }

// Decode tolerantly decodes the value into dst. Strings are parsed as JSON; structured
// values are round-tripped through JSON so any shape with matching field names decodes.
// Numbers landing in interface values decode as json.Number.
func (r Raw) Decode(dst any) error {
	var data []byte
	switch r.kind {
	case rawNull:
		return ErrAbsent
	case rawText:
		data = []byte(r.text)
	case rawValue:
		encoded, err := json.Marshal(r.value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		data = encoded
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrAbsent
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	return nil
}

// serialize renders a value the way string-valued backends keep it.
func serialize(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.RawMessage:
		return string(v), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
