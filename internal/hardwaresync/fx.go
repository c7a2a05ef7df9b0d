package hardwaresync

import (
	"github.com/smallbiznis/gymgate/internal/hardwaresync/client"
	"github.com/smallbiznis/gymgate/internal/hardwaresync/domain"
	"github.com/smallbiznis/gymgate/internal/hardwaresync/repository"
	"github.com/smallbiznis/gymgate/internal/hardwaresync/service"
	membershipdomain "github.com/smallbiznis/gymgate/internal/membership/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("hardwaresync.service",
	fx.Provide(repository.Provide),
	fx.Provide(client.New),
	fx.Provide(service.New),
	fx.Provide(
		func(s *service.Service) domain.Service { return s },
		func(s *service.Service) membershipdomain.Observer { return s },
	),
)
