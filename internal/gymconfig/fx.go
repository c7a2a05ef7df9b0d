package gymconfig

import (
	"github.com/smallbiznis/gymgate/internal/gymconfig/repository"
	"github.com/smallbiznis/gymgate/internal/gymconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gymconfig.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
