package v1

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"jan-server/services/vision-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/vision-api/internal/interfaces/httpserver/responses"
)

const mjpegBoundary = "frame"

// RegisterFeedRoutes registers the live video pull routes.
func RegisterFeedRoutes(router gin.IRoutes, handler *handlers.FeedHandler) {
	router.GET("/sessions/:id/feed", streamFeed(handler))
	router.GET("/sessions/:id/snapshot", snapshot(handler))
}

// streamFeed godoc
// @Summary      Live MJPEG feed
// @Description  Streams the session as multipart/x-mixed-replace JPEG parts. Stopped sessions are read straight from the source.
// @Tags         Feed
// @Produce      multipart/x-mixed-replace
// @Param        id path string true "Session ID"
// @Success      200
// @Failure      404 {object} responses.ErrorResponse
// @Failure      502 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/sessions/{id}/feed [get]
func streamFeed(handler *handlers.FeedHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		stream, err := handler.Stream(ctx, c.Param("id"))
		if err != nil {
			responses.HandleError(c, err, "failed to open feed")
			return
		}
		defer stream.Close()

		c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
		c.Header("Cache-Control", "no-cache, no-store")
		c.Header("Connection", "keep-alive")
		c.Status(http.StatusOK)

		if stream.Latest != nil {
			if err := writePart(c.Writer, stream.Latest); err != nil {
				return
			}
			c.Writer.Flush()
		}

		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case frame, ok := <-stream.Frames:
				if !ok {
					return false
				}
				return writePart(w, frame) == nil
			}
		})
	}
}

func writePart(w io.Writer, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// snapshot godoc
// @Summary      Single frame
// @Tags         Feed
// @Produce      image/jpeg
// @Param        id path string true "Session ID"
// @Success      200
// @Failure      404 {object} responses.ErrorResponse
// @Failure      502 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/sessions/{id}/snapshot [get]
func snapshot(handler *handlers.FeedHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		frame, err := handler.Snapshot(c.Request.Context(), c.Param("id"))
		if err != nil {
			responses.HandleError(c, err, "failed to capture snapshot")
			return
		}
		c.Header("Cache-Control", "no-cache, no-store")
		c.Data(http.StatusOK, "image/jpeg", frame)
	}
}
