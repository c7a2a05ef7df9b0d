package access

import (
	"github.com/smallbiznis/gymgate/internal/access/repository"
	"github.com/smallbiznis/gymgate/internal/access/service"
	"go.uber.org/fx"
)

var Module = fx.Module("access.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
