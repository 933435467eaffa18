package settlement

import (
	"github.com/lingodesk/lingodesk/internal/settlement/repository"
	"github.com/lingodesk/lingodesk/internal/settlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
