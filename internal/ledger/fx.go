package ledger

import (
	"github.com/lingodesk/lingodesk/internal/ledger/repository"
	"github.com/lingodesk/lingodesk/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
