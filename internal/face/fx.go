package face

import (
	"github.com/smallbiznis/gymgate/internal/face/matcher"
	"github.com/smallbiznis/gymgate/internal/face/repository"
	"github.com/smallbiznis/gymgate/internal/face/service"
	"go.uber.org/fx"
)

var Module = fx.Module("face.service",
	fx.Provide(repository.Provide),
	fx.Provide(matcher.New),
	fx.Provide(service.New),
)
