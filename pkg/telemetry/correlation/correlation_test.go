package correlation

import (
	"context"
	"net/http"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "existing")
	_, cid := EnsureCorrelationID(ctx)
	if cid != "existing" {
		t.Fatalf("expected existing id, got %q", cid)
	}
}

func TestApplyMintsULID(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://gate.local/gate/open", nil)
	cid := Apply(req)
	if req.Header.Get(HeaderName) != cid {
		t.Fatalf("header not set")
	}
	if _, err := ulid.Parse(cid); err != nil {
		t.Fatalf("expected ulid, got %q: %v", cid, err)
	}
}
