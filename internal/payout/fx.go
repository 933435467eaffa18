package payout

import (
	"github.com/lingodesk/lingodesk/internal/payout/repository"
	"github.com/lingodesk/lingodesk/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
