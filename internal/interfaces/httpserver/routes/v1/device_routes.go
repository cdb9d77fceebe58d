package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jan-server/services/vision-api/internal/infrastructure/devices"
	"jan-server/services/vision-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/vision-api/internal/interfaces/httpserver/responses"
)

// RegisterDeviceRoutes registers the device configuration routes.
func RegisterDeviceRoutes(router gin.IRoutes, handler *handlers.DeviceHandler) {
	router.GET("/devices", getDevices(handler))
	router.POST("/devices/sync", syncDevices(handler))
	router.GET("/devices/schema", deviceSchema())
}

// deviceSchema godoc
// @Summary      Device configuration schema
// @Description  JSON schema accepted by /v1/sessions/initialize and returned by the device server
// @Tags         Devices
// @Produce      json
// @Success      200 {object} object
// @Router       /v1/devices/schema [get]
func deviceSchema() gin.HandlerFunc {
	schema := devices.Schema()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, schema)
	}
}

// getDevices godoc
// @Summary      Device configuration
// @Tags         Devices
// @Produce      json
// @Success      200 {object} object
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/devices [get]
func getDevices(handler *handlers.DeviceHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := handler.Current(c.Request.Context())
		if err != nil {
			responses.HandleError(c, err, "failed to load device configuration")
			return
		}
		c.JSON(http.StatusOK, payload)
	}
}

// syncDevices godoc
// @Summary      Sync devices from the device server
// @Description  Fetches the device configuration, caches it encrypted and registers sessions for new devices
// @Tags         Devices
// @Produce      json
// @Success      200 {object} object
// @Failure      400 {object} responses.ErrorResponse
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/devices/sync [post]
func syncDevices(handler *handlers.DeviceHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := handler.Sync(c.Request.Context())
		if err != nil {
			responses.HandleError(c, err, "failed to sync devices")
			return
		}
		c.JSON(http.StatusOK, payload)
	}
}
