package responses

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"jan-server/services/vision-api/internal/domain/session"
	"jan-server/services/vision-api/internal/infrastructure/devices"
	"jan-server/services/vision-api/internal/infrastructure/storage"
	"jan-server/services/vision-api/internal/utils/platformerrors"
)

// HandleError maps domain errors to HTTP responses. Anything unrecognised is
// passed to the platform error writer.
func HandleError(c *gin.Context, err error, message string) {
	logger := log.With().Str("path", c.Request.URL.Path).Logger()

	var (
		cfgErr  *session.ConfigurationError
		openErr *session.SourceOpenError
		sinkErr *session.TransientSinkError
	)
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, storage.ErrFrameNotFound):
		platformerrors.WriteNotFound(c, message)
	case errors.Is(err, session.ErrAlreadyRunning), errors.Is(err, session.ErrAlreadyStopped):
		platformerrors.WriteConflict(c, message+": "+err.Error())
	case errors.As(err, &cfgErr):
		platformerrors.WriteValidationError(c, message+": "+cfgErr.Error())
	case errors.As(err, &openErr):
		logger.Warn().Err(err).Msg("source open failed")
		platformerrors.WriteBadGateway(c, message+": "+openErr.Error())
	case errors.As(err, &sinkErr):
		logger.Warn().Err(err).Msg("upstream dependency failed")
		platformerrors.WriteBadGateway(c, message+": "+sinkErr.Error())
	case errors.Is(err, devices.ErrSyncUnavailable):
		platformerrors.WriteValidationError(c, message+": "+err.Error())
	default:
		platformerrors.WriteError(c, err, logger)
	}
}
