package teacher

import (
	"github.com/lingodesk/lingodesk/internal/teacher/repository"
	"github.com/lingodesk/lingodesk/internal/teacher/service"
	"go.uber.org/fx"
)

var Module = fx.Module("teacher.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
