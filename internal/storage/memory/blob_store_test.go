package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"records":[]}`)
	uri, err := store.PutObject(context.Background(), "exports/oembed-cache.json", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://exports/oembed-cache.json" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = '['
	stored, ok := store.Object("exports/oembed-cache.json")
	if !ok || string(stored) != `{"records":[]}` {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
}
