package credential

import (
	"github.com/smallbiznis/gymgate/internal/credential/bluetooth"
	"github.com/smallbiznis/gymgate/internal/credential/face"
	"github.com/smallbiznis/gymgate/internal/credential/qr"
	"go.uber.org/fx"
)

var Module = fx.Module("credential",
	fx.Provide(
		qr.New,
		bluetooth.New,
		face.New,
		provideRegistry,
	),
)

func provideRegistry(q *qr.Validator, b *bluetooth.Validator, f *face.Validator) *Registry {
	return NewRegistry(q, b, f)
}
