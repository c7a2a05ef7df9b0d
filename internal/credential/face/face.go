package face

import (
	"context"

	"github.com/smallbiznis/gymgate/internal/credential/domain"
	facedomain "github.com/smallbiznis/gymgate/internal/face/domain"
)

type Validator struct {
	faces facedomain.Service
}

func New(faces facedomain.Service) *Validator {
	return &Validator{faces: faces}
}

func (v *Validator) Method() domain.Method { return domain.MethodFace }

func (v *Validator) Detail(valid bool) string {
	if valid {
		return "Face recognized"
	}
	return "Face not recognized"
}

func (v *Validator) Validate(ctx context.Context, claim domain.Claim) (bool, error) {
	return v.faces.Verify(ctx, claim.MemberID, claim.FacilityID, claim.ImageBase64)
}
