package source

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpeg(payload ...byte) []byte {
	frame := []byte{0xFF, 0xD8}
	frame = append(frame, payload...)
	return append(frame, 0xFF, 0xD9)
}

func TestJPEGSplitterFrames(t *testing.T) {
	first := jpeg(0x01, 0xFF, 0x00, 0x02)
	second := jpeg(0x03)

	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0x12}) // garbage before the first SOI
	stream.Write(first)
	stream.Write(second)

	s := newJPEGSplitter(&stream)

	got, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestJPEGSplitterTruncatedFrame(t *testing.T) {
	s := newJPEGSplitter(bytes.NewReader([]byte{0xFF, 0xD8, 0x01, 0x02}))
	_, err := s.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestBuildArgs(t *testing.T) {
	args := buildArgs("rtsp://cam.local/stream", 5)
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-rtsp_transport tcp")
	assert.Contains(t, joined, "-i rtsp://cam.local/stream")
	assert.Contains(t, joined, "-f image2pipe -vcodec mjpeg -r 5")
	assert.Equal(t, "-", args[len(args)-1])

	args = buildArgs("/videos/gate.mp4", 0)
	joined = strings.Join(args, " ")
	assert.NotContains(t, joined, "rtsp_transport")
	assert.NotContains(t, joined, "-r ")
}

func TestLineTailKeepsLast(t *testing.T) {
	tail := &lineTail{max: 2, done: make(chan struct{})}
	tail.consume(strings.NewReader("a\n\nb\nc\n"))
	assert.Equal(t, "b; c", tail.String())
}

func TestOpenRejectsEmptyURI(t *testing.T) {
	opener := NewFFmpegOpener(Config{}, zerolog.Nop())
	_, err := opener.Open(context.Background(), " ")
	assert.Error(t, err)
}

func TestOpenMissingBinary(t *testing.T) {
	opener := NewFFmpegOpener(Config{FFmpegPath: "/nonexistent/ffmpeg"}, zerolog.Nop())
	_, err := opener.Open(context.Background(), "rtsp://cam.local/stream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start ffmpeg")
}
