package quotes

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizportal/internal/session"
)

func TestReconcileReplacesMatchingCompany(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(session.KeyUser, storedUser))

	quotes := []Quote{{"CompanyID": "12", "QuoteID": 7}}
	require.NoError(t, Reconcile(store, IntID(12), quotes))

	raw := store.Get(session.KeyUser)
	var user map[string]any
	require.NoError(t, raw.Decode(&user))
	assert.Equal(t, "keep-me", user["Token"])

	companies := user["Companies"].([]any)
	require.Len(t, companies, 2)
	assert.Equal(t, []any{}, companies[0].(map[string]any)["Quotes"])
	second := companies[1].(map[string]any)["Quotes"].([]any)
	require.Len(t, second, 1)
	assert.Equal(t, json.Number("7"), second[0].(map[string]any)["QuoteID"])
}

func TestReconcileErrors(t *testing.T) {
	quotes := []Quote{{"CompanyID": 9}}

	err := Reconcile(session.NewMemoryStore(), IntID(9), nil)
	assert.True(t, errors.Is(err, ErrNothingToReconcile))

	err = Reconcile(session.NewMemoryStore(), IntID(9), quotes)
	assert.True(t, errors.Is(err, ErrReconciliation))

	bad := session.NewMemoryStore()
	require.NoError(t, bad.Set(session.KeyUser, "{"))
	err = Reconcile(bad, IntID(9), quotes)
	assert.True(t, errors.Is(err, ErrReconciliation))
	assert.True(t, errors.Is(err, ErrRecoverableParse))

	other := session.NewMemoryStore()
	require.NoError(t, other.Set(session.KeyUser, `{"Companies":[{"CompanyID":1}]}`))
	err = Reconcile(other, IntID(9), quotes)
	assert.True(t, errors.Is(err, ErrReconciliation))

	err = Reconcile(other, ID{}, quotes)
	assert.True(t, errors.Is(err, ErrReconciliation))
}

func TestReconcileTarget(t *testing.T) {
	assert.Equal(t, "9", ReconcileTarget([]Quote{{"CompanyID": 9}}, IntID(3)).String())
	assert.Equal(t, "3", ReconcileTarget([]Quote{{"QuoteID": 1}}, IntID(3)).String())
	assert.Equal(t, "3", ReconcileTarget(nil, IntID(3)).String())
}

func TestIDSemantics(t *testing.T) {
	assert.True(t, IntID(9).Same(StringID("9")))
	assert.False(t, IntID(9).Same(ID{}))
	assert.False(t, IntID(0).Usable())
	assert.False(t, StringID("").Usable())
	assert.True(t, StringID("0").Usable())

	var id ID
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &id))
	raw, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(raw))

	require.NoError(t, json.Unmarshal([]byte(`9.0`), &id))
	assert.True(t, id.Same(IntID(9)))
}

func TestAmountDecimal(t *testing.T) {
	cases := map[string]struct {
		in   Amount
		want float64
		ok   bool
	}{
		"absent":   {in: Amount{}, ok: false},
		"number":   {in: NumberAmount(12.5), want: 12.5, ok: true},
		"text":     {in: TextAmount(" 99"), want: 99, ok: true},
		"prefix":   {in: TextAmount("3.5e2kg"), want: 350, ok: true},
		"signed":   {in: TextAmount("+4"), want: 4, ok: true},
		"leading.": {in: TextAmount(".5"), want: 0.5, ok: true},
		"garbage":  {in: TextAmount("abc"), ok: false},
		"empty":    {in: TextAmount(""), ok: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d, ok := tc.in.Decimal()
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.want, d.InexactFloat64())
			}
		})
	}
}
