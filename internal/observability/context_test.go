package observability

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestWithOpID(t *testing.T) {
	ctx := WithOpID(context.Background())
	id := OpID(ctx)
	if id == "" {
		t.Fatal("expected op id")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("op id %q is not a UUID: %v", id, err)
	}
	if parsed.Version() != 4 {
		t.Errorf("uuid version = %d, want 4", parsed.Version())
	}

	if other := OpID(WithOpID(context.Background())); other == id {
		t.Error("each call should generate a new op id")
	}
}

func TestOpIDMissing(t *testing.T) {
	if id := OpID(context.Background()); id != "" {
		t.Errorf("OpID() = %q, want empty", id)
	}
}
