package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/credential/bluetooth"
	"github.com/smallbiznis/gymgate/internal/credential/domain"
	"github.com/smallbiznis/gymgate/internal/credential/face"
	facedomain "github.com/smallbiznis/gymgate/internal/face/domain"
)

type stubFaces struct {
	verified bool
	err      error
	calls    int
}

func (s *stubFaces) Enroll(context.Context, facedomain.EnrollRequest) (*facedomain.EnrollResponse, error) {
	return nil, nil
}

func (s *stubFaces) Revoke(context.Context, string, string) error { return nil }

func (s *stubFaces) Verify(context.Context, string, string, string) (bool, error) {
	s.calls++
	return s.verified, s.err
}

func TestRegistryLookup(t *testing.T) {
	faces := &stubFaces{verified: true}
	registry := NewRegistry(
		bluetooth.New(config.NewStaticAccessPolicy(config.DefaultAccessPolicy())),
		face.New(faces),
		nil,
	)

	validator, err := registry.Lookup(" FACE ")
	if err != nil {
		t.Fatalf("lookup face: %v", err)
	}
	ok, err := validator.Validate(context.Background(), domain.Claim{MemberID: "1", FacilityID: "gym_001", ImageBase64: "aW1n"})
	if err != nil || !ok || faces.calls != 1 {
		t.Fatalf("expected face verification, got ok=%v err=%v calls=%d", ok, err, faces.calls)
	}
	if validator.Detail(true) != "Face recognized" || validator.Detail(false) != "Face not recognized" {
		t.Fatalf("unexpected face details")
	}

	if _, err := registry.Lookup("nfc"); !errors.Is(err, domain.ErrUnsupportedMethod) {
		t.Fatalf("expected unsupported method, got %v", err)
	}
	if got := registry.Methods(); len(got) != 2 || got[0] != "bluetooth" || got[1] != "face" {
		t.Fatalf("unexpected methods %v", got)
	}
}
