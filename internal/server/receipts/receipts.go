// Package receipts renders payment receipts and keeps them in object storage
// under deterministic keys, so issuing a receipt twice yields one object.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/timex"
)

// Format is a receipt encoding.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatJSON Format = "json"
)

var ErrUnsupportedFormat = errors.New("unsupported receipt format")

// ParseFormat accepts "pdf" or "json" in any case; empty means PDF.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatPDF, nil
	case FormatPDF, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

func (f Format) contentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "application/pdf"
}

// Key is the storage key of a payment's receipt.
func Key(paymentID string, f Format) string {
	return "receipts/" + paymentID + "." + string(f)
}

// ObjectStore is the blob storage receipts are written to.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	// URL returns a time-limited download link for key.
	URL(ctx context.Context, key string) (string, error)
}

// Generator renders receipts into an ObjectStore.
type Generator struct {
	store ObjectStore
	clock timex.Clock
}

func NewGenerator(store ObjectStore, clock timex.Clock) *Generator {
	return &Generator{store: store, clock: clock}
}

// Generate stores the receipt for d in format f and returns its key. An
// already stored receipt is left as is.
func (g *Generator) Generate(ctx context.Context, d *models.PaymentDetails, f Format) (string, error) {
	key := Key(d.ID, f)

	exists, err := g.store.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("error checking receipt %s: %w", key, err)
	}
	if exists {
		return key, nil
	}

	var body []byte
	switch f {
	case FormatPDF:
		body, err = RenderPDF(d, g.clock.Now())
	case FormatJSON:
		body, err = RenderJSON(d, g.clock.Now())
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return "", fmt.Errorf("error rendering receipt: %w", err)
	}

	if err := g.store.Put(ctx, key, f.contentType(), body); err != nil {
		return "", fmt.Errorf("error storing receipt %s: %w", key, err)
	}
	return key, nil
}

// URL returns a download link for a stored receipt.
func (g *Generator) URL(ctx context.Context, key string) (string, error) {
	return g.store.URL(ctx, key)
}
