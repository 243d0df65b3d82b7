package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/account-service/internal/interface/http"
	"github.com/oksasatya/account-service/internal/interface/middleware"
	"github.com/oksasatya/account-service/pkg/helpers"
)

// AccountModule wires the account commands and queries.
// Routes live under /api/accounts; /api/me returns the caller's account.
type AccountModule struct {
	Handler      *handlers.AccountHandler
	JWT          *helpers.JWTManager
	RDB          redis.UniversalClient
	AuthRequired bool
}

func NewAccountModule(h *handlers.AccountHandler, jwt *helpers.JWTManager, rdb redis.UniversalClient, authRequired bool) *AccountModule {
	return &AccountModule{Handler: h, JWT: jwt, RDB: rdb, AuthRequired: authRequired}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	g := rg.Group("/")
	g.Use(
		middleware.Authenticate(m.JWT, m.AuthRequired),
		middleware.RateLimit(m.RDB, 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(m.RDB, 120, time.Minute, middleware.KeyByAccountID(), nil),
	)
	{
		g.GET("/me", m.Handler.Me)

		g.POST("/accounts", m.Handler.Create)
		g.GET("/accounts", m.Handler.List)
		g.GET("/accounts/search", m.Handler.Search)
		g.GET("/accounts/:id", m.Handler.Get)
		g.PATCH("/accounts/:id", m.Handler.Update)
		g.DELETE("/accounts/:id", m.Handler.Delete)
		g.POST("/accounts/:id/approve", m.Handler.Approve)
		g.POST("/accounts/:id/block", m.Handler.Block)
		g.PUT("/accounts/:id/roles", m.Handler.GrantRoles)
		g.PUT("/accounts/:id/password", m.Handler.ChangePassword)
		g.GET("/accounts/:id/history", m.Handler.History)
		g.POST("/accounts/:id/history/export", m.Handler.ExportHistory)
	}
}
