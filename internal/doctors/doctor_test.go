package doctors

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/opd-frontdesk/internal/docstore"
)

func TestParseType(t *testing.T) {
	cases := map[string]Type{"opd": TypeOPD, " IPD ": TypeIPD, "BOTH": TypeBoth}
	for in, want := range cases {
		got, ok := ParseType(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseType("surgery")
	assert.False(t, ok)
}

func TestMatchNameFirstInRosterOrder(t *testing.T) {
	roster := []Doctor{
		{ID: "1", Name: "Dr. Anil Sharma"},
		{ID: "2", Name: "Dr. Sunita Sharma"},
	}
	got, ok := MatchName(roster, "sharma")
	require.True(t, ok)
	assert.Equal(t, "1", got.ID)

	_, ok = MatchName(roster, "  ")
	assert.False(t, ok)
	_, ok = MatchName(roster, "mehta")
	assert.False(t, ok)
}

func TestFindByID(t *testing.T) {
	roster := []Doctor{{ID: "1"}, {ID: "2", Name: "B"}}
	got, ok := FindByID(roster, "2")
	require.True(t, ok)
	assert.Equal(t, "B", got.Name)
	_, ok = FindByID(roster, "3")
	assert.False(t, ok)
}

func TestFromChild(t *testing.T) {
	d, err := FromChild(docstore.Child{Key: "k1", Value: json.RawMessage(`{"name":"Dr. Rao","charges":500.5,"type":"OPD","createdAt":17}`)})
	require.NoError(t, err)
	assert.Equal(t, Doctor{ID: "k1", Name: "Dr. Rao", Charges: 500.5, Type: TypeOPD, CreatedAt: 17}, d)

	_, err = FromChild(docstore.Child{Key: "k2", Value: json.RawMessage(`[]`)})
	assert.Error(t, err)
}

func TestServiceCreate(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := NewService(store, nil)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	ctx := context.Background()
	doc, err := svc.Create(ctx, CreateRequest{Name: " Dr. Rao ", Charges: "500", Type: "opd"})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "Dr. Rao", doc.Name)
	assert.Equal(t, 500.0, doc.Charges)
	assert.Equal(t, TypeOPD, doc.Type)

	raw, err := store.Get(ctx, docstore.Join(Collection, doc.ID))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Dr. Rao","charges":500,"type":"OPD","createdAt":1700000000000}`, string(raw))
}

func TestServiceCreateValidation(t *testing.T) {
	svc := NewService(docstore.NewMemoryStore(), nil)
	cases := []struct {
		name string
		req  CreateRequest
		want string
	}{
		{"missing all", CreateRequest{}, "missing name, charges, type"},
		{"bad charges", CreateRequest{Name: "A", Charges: "abc", Type: "OPD"}, "positive number"},
		{"zero charges", CreateRequest{Name: "A", Charges: "0", Type: "OPD"}, "positive number"},
		{"NaN charges", CreateRequest{Name: "A", Charges: "NaN", Type: "OPD"}, "positive number"},
		{"infinite charges", CreateRequest{Name: "A", Charges: "Inf", Type: "OPD"}, "positive number"},
		{"bad type", CreateRequest{Name: "A", Charges: "10", Type: "ER"}, "OPD, IPD or Both"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDoctor))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

type failingStore struct {
	docstore.Store
	keyErr error
}

func (f failingStore) NewKey(ctx context.Context, path string) (string, error) {
	return "", f.keyErr
}

func TestServiceCreateKeyFailure(t *testing.T) {
	svc := NewService(failingStore{Store: docstore.NewMemoryStore(), keyErr: errors.New("offline")}, nil)
	_, err := svc.Create(context.Background(), CreateRequest{Name: "A", Charges: "10", Type: "OPD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
}
