package firestore

import (
	"context"
	"errors"
	"testing"

	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/config"
)

func TestProviderCollectionName(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "invoices"},
		{"staging", "staging_invoices"},
		{" qa_ ", "qa_invoices"},
	}
	for _, tc := range tests {
		p := NewProvider(config.FirestoreConfig{ProjectID: "demo", CollectionPrefix: tc.prefix})
		if got := p.CollectionName("invoices"); got != tc.want {
			t.Fatalf("prefix %q: expected %q, got %q", tc.prefix, tc.want, got)
		}
	}
}

func TestProviderClosedRejectsClient(t *testing.T) {
	p := NewProvider(config.FirestoreConfig{ProjectID: "demo"})
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := p.Collection(context.Background(), "invoices"); !errors.Is(err, ErrProviderClosed) {
		t.Fatalf("expected ErrProviderClosed, got %v", err)
	}
}
