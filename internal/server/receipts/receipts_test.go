package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/timex"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issued = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func details() *models.PaymentDetails {
	return &models.PaymentDetails{
		Payment: models.Payment{
			ID: "p1", RentalRequestID: "r1", Amount: decimal.NewFromInt(200),
			Method: models.MethodMock, Status: models.PaymentSuccess,
		},
		RentalStatus:  models.RentalCompleted,
		CustomerID:    "c1",
		CustomerName:  "Zoë",
		CustomerEmail: "zoe@example.com",
		VehicleID:     "v1",
		VehicleTitle:  "Civic",
		StartDate:     issued.Add(24 * time.Hour),
		EndDate:       issued.Add(5 * 24 * time.Hour),
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatPDF, "PDF": FormatPDF, " json ": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "receipts/p1.pdf", Key("p1", FormatPDF))
	assert.Equal(t, "receipts/p1.json", Key("p1", FormatJSON))
}

func TestRenderPDF(t *testing.T) {
	body, err := RenderPDF(details(), issued)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
}

func TestRenderJSON(t *testing.T) {
	body, err := RenderJSON(details(), issued)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "p1", doc["paymentId"])
	assert.Equal(t, "200.00", doc["amount"])
	assert.Equal(t, "Civic", doc["vehicle"].(map[string]any)["title"])
	assert.Equal(t, "Zoë", doc["customer"].(map[string]any)["name"])
}

func TestGenerate_StoresOncePerFormat(t *testing.T) {
	store := NewMemoryStore()
	g := NewGenerator(store, timex.NewFixedClock(issued))
	ctx := context.Background()

	key, err := g.Generate(ctx, details(), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "receipts/p1.pdf", key)

	again, err := g.Generate(ctx, details(), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, key, again)
	assert.Equal(t, 1, store.Puts())

	obj, ok := store.Get(key)
	require.True(t, ok)
	assert.Equal(t, "application/pdf", obj.ContentType)

	jkey, err := g.Generate(ctx, details(), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "receipts/p1.json", jkey)
	obj, _ = store.Get(jkey)
	assert.Equal(t, "application/json", obj.ContentType)

	url, err := g.URL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "memory://receipts/p1.pdf", url)
}

type failingStore struct {
	MemoryStore
	existsErr, putErr error
}

func (f *failingStore) Exists(context.Context, string) (bool, error) { return false, f.existsErr }
func (f *failingStore) Put(context.Context, string, string, []byte) error {
	return f.putErr
}

func TestGenerate_Errors(t *testing.T) {
	ctx := context.Background()

	g := NewGenerator(&failingStore{existsErr: errors.New("head failed")}, timex.SystemClock{})
	_, err := g.Generate(ctx, details(), FormatPDF)
	assert.ErrorContains(t, err, "head failed")

	g = NewGenerator(&failingStore{putErr: errors.New("put failed")}, timex.SystemClock{})
	_, err = g.Generate(ctx, details(), FormatJSON)
	assert.ErrorContains(t, err, "put failed")

	_, err = g.Generate(ctx, details(), Format("xml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
