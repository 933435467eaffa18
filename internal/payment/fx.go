package payment

import (
	"github.com/lingodesk/lingodesk/internal/payment/repository"
	"github.com/lingodesk/lingodesk/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
