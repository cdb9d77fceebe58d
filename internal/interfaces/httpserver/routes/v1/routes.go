package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/vision-api/internal/interfaces/httpserver/handlers"
)

// Routes holds the v1 route configuration.
type Routes struct {
	handlers *handlers.Provider
}

func NewRoutes(handlerProvider *handlers.Provider) *Routes {
	return &Routes{handlers: handlerProvider}
}

// Register mounts every v1 route, behind authMiddleware when one is given.
func (r *Routes) Register(engine *gin.Engine, authMiddleware gin.HandlerFunc) {
	v1 := engine.Group("/v1")
	if authMiddleware != nil {
		v1.Use(authMiddleware)
	}
	RegisterSessionRoutes(v1, r.handlers.Session)
	RegisterFeedRoutes(v1, r.handlers.Feed)
	RegisterLiveRoutes(v1, r.handlers.Live)
	RegisterEventRoutes(v1, r.handlers.Event, r.handlers.Frame)
	RegisterDeviceRoutes(v1, r.handlers.Device)
}
