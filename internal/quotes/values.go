package quotes

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ID is an identifier that portal records carry as a JSON number, a string or null. The
// original JSON kind survives a round trip.
type ID struct {
	text   string
	quoted bool
	set    bool
}

// IntID returns a numeric identifier.
func IntID(n int64) ID {
	return ID{text: strconv.FormatInt(n, 10), set: true}
}

// StringID returns a string identifier.
func StringID(s string) ID {
	return ID{text: s, quoted: true, set: true}
}

// IsNull reports whether the identifier is absent.
func (id ID) IsNull() bool { return !id.set }

// Usable reports whether the identifier would pass a JavaScript truthiness check:
// null, the number zero and the empty string are not usable.
func (id ID) Usable() bool {
	if !id.set {
		return false
	}
	if id.quoted {
		return id.text != ""
	}
	f, err := strconv.ParseFloat(id.text, 64)
	return err == nil && f != 0
}

// String returns the identifier text, empty when null.
func (id ID) String() string { return id.text }

// Or returns id when usable and fallback otherwise.
func (id ID) Or(fallback ID) ID {
	if id.Usable() {
		return id
	}
	return fallback
}

// Same compares two identifiers by their string form, so 9 and "9" match.
func (id ID) Same(other ID) bool {
	return id.set && other.set && id.canonical() == other.canonical()
}

func (id ID) canonical() string {
	if id.quoted {
		return id.text
	}
	if f, err := strconv.ParseFloat(id.text, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return id.text
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if !id.set {
		return []byte("null"), nil
	}
	if id.quoted {
		return json.Marshal(id.text)
	}
	return []byte(id.text), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID{text: n.String(), set: true}
	return nil
}

// Amount is a fee as supplied by service catalogue records: a number, a numeric string or
// nothing at all.
type Amount struct {
	text string
	set  bool
}

// NumberAmount returns an amount holding a number.
func NumberAmount(f float64) Amount {
	return Amount{text: strconv.FormatFloat(f, 'f', -1, 64), set: true}
}

// TextAmount returns an amount holding a string as received.
func TextAmount(s string) Amount {
	return Amount{text: s, set: true}
}

// Decimal parses the amount the way a lenient decimal parser does: surrounding whitespace is
// ignored and the longest numeric prefix wins, so "250.5 INR" is 250.5. Empty, null and
// non-numeric input report false.
func (a Amount) Decimal() (decimal.Decimal, bool) {
	if !a.set {
		return decimal.Zero, false
	}
	prefix := numericPrefix(strings.TrimLeftFunc(a.text, unicode.IsSpace))
	if prefix == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(prefix, "+"))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.set {
		return []byte("null"), nil
	}
	return json.Marshal(a.text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = Amount{}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAmount(s)
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*a = TextAmount(string(data))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*a = TextAmount(n.String())
	}
	return nil
}

// numericPrefix returns the longest leading run of s that forms a decimal literal with an
// optional sign, fraction and exponent.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}
	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			exp++
		}
		if exp > 0 {
			end = j
		}
	}
	return strings.TrimSuffix(s[:end], ".")
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
