package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type company struct {
	CompanyID   int    `json:"CompanyID"`
	CompanyName string `json:"CompanyName"`
}

func TestRawDecode(t *testing.T) {
	cases := []struct {
		name    string
		raw     Raw
		want    company
		wantErr error
	}{
		{name: "null", raw: Null(), wantErr: ErrAbsent},
		{name: "empty text", raw: Text("   "), wantErr: ErrAbsent},
		{name: "json null", raw: Text("null"), wantErr: ErrAbsent},
		{name: "garbage", raw: Text("{not json"), wantErr: ErrMalformed},
		{name: "serialized", raw: Text(`{"CompanyID":3,"CompanyName":"Acme"}`), want: company{3, "Acme"}},
		{name: "structured map", raw: Value(map[string]any{"CompanyID": 3, "CompanyName": "Acme"}), want: company{3, "Acme"}},
		{name: "structured struct", raw: Value(company{CompanyID: 3, CompanyName: "Acme"}), want: company{3, "Acme"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got company
			err := tc.raw.Decode(&got)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValueOfStringIsText(t *testing.T) {
	raw := Value(`{"CompanyID":1}`)
	var got company
	require.NoError(t, raw.Decode(&got))
	assert.Equal(t, 1, got.CompanyID)
	assert.True(t, Value(nil).IsNull())
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	assert.True(t, store.Get(KeyUser).IsNull())

	require.NoError(t, store.Set(KeyUser, map[string]any{"Email": "a@b.c"}))
	var user struct{ Email string }
	require.NoError(t, store.Get(KeyUser).Decode(&user))
	assert.Equal(t, "a@b.c", user.Email)

	require.NoError(t, store.Clear(KeyUser))
	assert.True(t, store.Get(KeyUser).IsNull())
}

func TestRawDecodeTrailingData(t *testing.T) {
	var got company
	err := Text(`{"CompanyID":1} {"CompanyID":2}`).Decode(&got)
	assert.True(t, errors.Is(err, ErrMalformed))
}
