package gateprovider

import (
	"github.com/smallbiznis/gymgate/internal/gateprovider/adapters"
	"github.com/smallbiznis/gymgate/internal/gateprovider/adapters/generic"
	"github.com/smallbiznis/gymgate/internal/gateprovider/adapters/zetko"
	"go.uber.org/fx"
)

var Module = fx.Module("gateprovider",
	fx.Provide(NewRegistry),
)

func NewRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		zetko.NewFactory(),
		generic.NewFactory(),
	)
}
