package lesson

import (
	"github.com/lingodesk/lingodesk/internal/lesson/repository"
	"github.com/lingodesk/lingodesk/internal/lesson/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lesson.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
