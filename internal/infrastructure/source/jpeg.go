package source

import (
	"bufio"
	"errors"
	"io"
)

const maxFrameBytes = 16 << 20

var errFrameTooLarge = errors.New("jpeg frame exceeds size limit")

// jpegSplitter cuts a concatenated MJPEG byte stream into frames on the
// SOI (FF D8) and EOI (FF D9) markers. Entropy-coded data never contains a
// bare FF D9 because encoders stuff FF bytes.
type jpegSplitter struct {
	r *bufio.Reader
}

func newJPEGSplitter(r io.Reader) *jpegSplitter {
	return &jpegSplitter{r: bufio.NewReaderSize(r, 64<<10)}
}

// Next returns the next complete frame, io.EOF at a clean end of stream, or
// io.ErrUnexpectedEOF when the stream stops mid-frame.
func (s *jpegSplitter) Next() ([]byte, error) {
	var prev byte
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if prev == 0xFF && b == 0xD8 {
			break
		}
		prev = b
	}

	frame := make([]byte, 2, 256<<10)
	frame[0], frame[1] = 0xFF, 0xD8
	prev = 0
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		frame = append(frame, b)
		if prev == 0xFF && b == 0xD9 {
			return frame, nil
		}
		if len(frame) > maxFrameBytes {
			return nil, errFrameTooLarge
		}
		prev = b
	}
}
