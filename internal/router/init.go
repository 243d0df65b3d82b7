package router

import (
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	handlers "github.com/oksasatya/account-service/internal/interface/http"
	"github.com/oksasatya/account-service/internal/router/modules"
	"github.com/oksasatya/account-service/pkg/helpers"
)

// Deps carries everything the HTTP modules are built from. main composes it.
type Deps struct {
	Logger       *logrus.Logger
	Redis        redis.UniversalClient
	JWT          *helpers.JWTManager
	AuthRequired bool
	DebugMetrics bool
	HealthChecks map[string]handlers.Pinger
	Accounts     *handlers.AccountHandler
	Auth         *handlers.AuthHandler
}

// InitModules registers every feature module with the registry. It is
// called once during startup.
func InitModules(r *Registry, d Deps) {
	r.Add(modules.NewHealthModule(handlers.NewHealthHandler(d.HealthChecks)))
	r.Add(modules.NewAuthModule(d.Auth, d.JWT, d.Redis))
	r.Add(modules.NewAccountModule(d.Accounts, d.JWT, d.Redis, d.AuthRequired))
	if d.DebugMetrics {
		r.Add(modules.NewDebugModule(d.Redis))
	}
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{"modules": len(r.modules), "auth_required": d.AuthRequired}).Info("http modules initialized")
	}
}
