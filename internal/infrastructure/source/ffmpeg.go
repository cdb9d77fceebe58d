package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/domain/session"
	"jan-server/services/vision-api/internal/utils/redact"
)

const stderrTailLines = 8

// Config configures the ffmpeg opener.
type Config struct {
	FFmpegPath  string
	OpenTimeout time.Duration
	FrameRate   int
}

// FFmpegOpener decodes sources with an ffmpeg child process that writes
// MJPEG frames to stdout.
type FFmpegOpener struct {
	cfg Config
	log zerolog.Logger
}

var _ session.SourceOpener = (*FFmpegOpener)(nil)

// NewFFmpegOpener creates an opener.
func NewFFmpegOpener(cfg Config, log zerolog.Logger) *FFmpegOpener {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 15 * time.Second
	}
	return &FFmpegOpener{
		cfg: cfg,
		log: log.With().Str("component", "ffmpeg-source").Logger(),
	}
}

// Open starts ffmpeg and waits for the first frame. The process outlives ctx;
// it is bound to the returned source and ends on Close.
func (o *FFmpegOpener) Open(ctx context.Context, uri string) (session.FrameSource, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("empty source uri")
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, o.cfg.FFmpegPath, buildArgs(uri, o.cfg.FrameRate)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	src := &ffmpegSource{
		cancel:  cancel,
		frames:  make(chan []byte),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		tail:    &lineTail{max: stderrTailLines, done: make(chan struct{})},
	}
	go src.tail.consume(stderr)
	go src.read(cmd, newJPEGSplitter(stdout))

	timer := time.NewTimer(o.cfg.OpenTimeout)
	defer timer.Stop()

	select {
	case frame, ok := <-src.frames:
		if ok {
			src.pending = frame
			o.log.Debug().Str("source_uri", redact.URI(uri)).Msg("source opened")
			return src, nil
		}
		err = src.readErr()
	case <-timer.C:
		err = fmt.Errorf("no frame within %s", o.cfg.OpenTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}

	_ = src.Close()
	if tail := src.tail.String(); tail != "" {
		// ffmpeg echoes the input url in its errors
		tail = strings.ReplaceAll(tail, uri, redact.URI(uri))
		err = fmt.Errorf("%w: %s", err, tail)
	}
	return nil, err
}

func buildArgs(uri string, frameRate int) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if strings.HasPrefix(uri, "rtsp://") || strings.HasPrefix(uri, "rtsps://") {
		args = append(args, "-rtsp_transport", "tcp")
	}
	args = append(args, "-i", uri, "-f", "image2pipe", "-vcodec", "mjpeg")
	if frameRate > 0 {
		args = append(args, "-r", strconv.Itoa(frameRate))
	}
	return append(args, "-q:v", "5", "-")
}

type ffmpegSource struct {
	cancel  context.CancelFunc
	frames  chan []byte
	closing chan struct{}
	done    chan struct{}
	tail    *lineTail
	pending []byte

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

func (s *ffmpegSource) read(cmd *exec.Cmd, splitter *jpegSplitter) {
	defer close(s.done)
	defer close(s.frames)

	var readErr error
	for {
		frame, err := splitter.Next()
		if err != nil {
			readErr = err
			break
		}
		select {
		case s.frames <- frame:
		case <-s.closing:
			readErr = io.EOF
		}
		if readErr != nil {
			break
		}
	}

	// stderr must be drained before Wait closes the pipe
	<-s.tail.done
	waitErr := cmd.Wait()
	s.mu.Lock()
	switch {
	case errors.Is(readErr, io.EOF) && waitErr == nil:
		s.err = io.EOF
	case waitErr != nil:
		s.err = fmt.Errorf("ffmpeg exited: %w", waitErr)
	default:
		s.err = readErr
	}
	s.mu.Unlock()
}

func (s *ffmpegSource) readErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return io.EOF
	}
	return s.err
}

// Next returns the next frame in source order.
func (s *ffmpegSource) Next(ctx context.Context) ([]byte, error) {
	if s.pending != nil {
		frame := s.pending
		s.pending = nil
		return frame, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-s.frames:
		if !ok {
			return nil, s.readErr()
		}
		return frame, nil
	}
}

// Close kills ffmpeg and waits for the reader to finish.
func (s *ffmpegSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.cancel()
	})
	<-s.done
	return nil
}

// lineTail keeps the last lines written to ffmpeg's stderr.
type lineTail struct {
	mu    sync.Mutex
	max   int
	lines []string
	done  chan struct{}
}

func (t *lineTail) consume(r io.Reader) {
	defer close(t.done)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		t.add(scanner.Text())
	}
}

func (t *lineTail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "; ")
}
