package student

import (
	"github.com/lingodesk/lingodesk/internal/student/repository"
	"github.com/lingodesk/lingodesk/internal/student/service"
	"go.uber.org/fx"
)

var Module = fx.Module("student.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
