package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/domain/session"
)

// ErrNoFrame is returned when a source yields nothing to show.
var ErrNoFrame = errors.New("no frame available")

// FrameStream is a sequence of encoded frames. Close must be called once the
// consumer is done.
type FrameStream struct {
	Frames <-chan []byte
	// Latest is the frame already on screen when a running pipeline was joined.
	Latest []byte
	Close  func()
}

// FeedHandler serves live video pulled from sessions.
type FeedHandler struct {
	service session.Service
	sources session.SourceOpener
	log     zerolog.Logger
}

func NewFeedHandler(service session.Service, sources session.SourceOpener, log zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		service: service,
		sources: sources,
		log:     log.With().Str("component", "feed-handler").Logger(),
	}
}

// Stream joins the pipeline's frame feed when it is running, otherwise it
// opens the session source for as long as the caller's context lives.
func (h *FeedHandler) Stream(ctx context.Context, id string) (*FrameStream, error) {
	sess, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sess.Pipeline.State() == session.StateRunning {
		frames, cancel := sess.Pipeline.Feed().Subscribe()
		latest, _ := sess.Pipeline.Feed().Latest()
		return &FrameStream{Frames: frames, Latest: latest, Close: cancel}, nil
	}

	src, err := h.open(ctx, sess)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	out := make(chan []byte, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		defer src.Close()
		for {
			frame, err := src.Next(streamCtx)
			if err != nil {
				if streamCtx.Err() == nil {
					h.log.Debug().Err(err).Str("session_id", id).Msg("direct feed ended")
				}
				return
			}
			select {
			case out <- frame:
			case <-streamCtx.Done():
				return
			}
		}
	}()

	return &FrameStream{
		Frames: out,
		Close: func() {
			cancel()
			<-done
		},
	}, nil
}

// Snapshot returns one frame: the latest of a running pipeline, or the first
// frame read directly from the source.
func (h *FeedHandler) Snapshot(ctx context.Context, id string) ([]byte, error) {
	sess, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Pipeline.State() == session.StateRunning {
		if frame, ok := sess.Pipeline.Feed().Latest(); ok {
			return frame, nil
		}
	}

	src, err := h.open(ctx, sess)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	frame, err := src.Next(ctx)
	if err != nil {
		return nil, &session.SourceOpenError{
			URI: sess.Descriptor.SourceURI,
			Err: fmt.Errorf("%w: %v", ErrNoFrame, err),
		}
	}
	return frame, nil
}

func (h *FeedHandler) open(ctx context.Context, sess *session.Session) (session.FrameSource, error) {
	src, err := h.sources.Open(ctx, sess.Descriptor.SourceURI)
	if err != nil {
		return nil, &session.SourceOpenError{URI: sess.Descriptor.SourceURI, Err: err}
	}
	return src, nil
}
