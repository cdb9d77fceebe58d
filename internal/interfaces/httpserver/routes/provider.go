package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/google/wire"

	"jan-server/services/vision-api/internal/infrastructure/auth"
	"jan-server/services/vision-api/internal/interfaces/httpserver/handlers"
	v1 "jan-server/services/vision-api/internal/interfaces/httpserver/routes/v1"
)

// Provider holds all route providers.
type Provider struct {
	V1            *v1.Routes
	authValidator *auth.Validator
}

func NewProvider(handlerProvider *handlers.Provider, authValidator *auth.Validator) *Provider {
	return &Provider{
		V1:            v1.NewRoutes(handlerProvider),
		authValidator: authValidator,
	}
}

// Register mounts all API routes; auth applies to /v1 only.
func (p *Provider) Register(engine *gin.Engine) {
	var authMiddleware gin.HandlerFunc
	if p.authValidator != nil {
		authMiddleware = p.authValidator.Middleware()
	}
	p.V1.Register(engine, authMiddleware)
}

// RouteProvider provides routes for wire.
var RouteProvider = wire.NewSet(
	NewProvider,
)
