// Package protocol defines the line-oriented wire format shared by the chat
// server and its clients: newline-delimited UTF-8 frames with a fixed size cap.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// MaxFrameSize is the largest frame payload accepted on the wire, excluding
// the trailing delimiter. It matches the client's historical 1024-byte read buffer.
const MaxFrameSize = 1024

const delimiter = '\n'

var (
	// ErrFrameTooLarge is returned when a frame exceeds the configured size cap.
	ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")
	// ErrInvalidFrame is returned for frames that embed a delimiter or are not valid UTF-8.
	ErrInvalidFrame = errors.New("protocol: invalid frame")
)

// Reader reads frames from a byte stream.
type Reader struct {
	br      *bufio.Reader
	maxSize int
}

// NewReader wraps r in a frame Reader. A maxSize outside (0, MaxFrameSize]
// falls back to MaxFrameSize.
func NewReader(r io.Reader, maxSize int) *Reader {
	maxSize = clampSize(maxSize)
	// Room for the payload plus an optional "\r\n" terminator.
	return &Reader{
		br:      bufio.NewReaderSize(r, maxSize+2),
		maxSize: maxSize,
	}
}

// ReadFrame returns the next frame without its terminator. A trailing "\r"
// is stripped so line-mode telnet clients interoperate. A final unterminated
// frame before EOF is returned as a frame; the following call returns io.EOF.
func (r *Reader) ReadFrame() (string, error) {
	line, err := r.br.ReadSlice(delimiter)
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return "", fmt.Errorf("%w: more than %d bytes without delimiter", ErrFrameTooLarge, r.maxSize)
	case errors.Is(err, io.EOF) && len(line) > 0:
		// fall through and hand back the partial frame
	case err != nil:
		return "", err
	}

	line = trimTerminator(line)
	if len(line) > r.maxSize {
		return "", fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(line))
	}
	if !utf8.Valid(line) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidFrame)
	}
	return string(line), nil
}

func trimTerminator(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == delimiter {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}

// Writer writes frames to a byte stream. It is not safe for concurrent use;
// callers serialize writes per connection.
type Writer struct {
	bw      *bufio.Writer
	maxSize int
}

// NewWriter wraps w in a frame Writer.
func NewWriter(w io.Writer, maxSize int) *Writer {
	maxSize = clampSize(maxSize)
	return &Writer{
		bw:      bufio.NewWriterSize(w, maxSize+1),
		maxSize: maxSize,
	}
}

// WriteFrame validates frame, writes it followed by the delimiter, and flushes.
func (w *Writer) WriteFrame(frame string) error {
	if err := ValidateFrame(frame, w.maxSize); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(frame); err != nil {
		return err
	}
	if err := w.bw.WriteByte(delimiter); err != nil {
		return err
	}
	return w.bw.Flush()
}

// ValidateFrame reports whether frame can be sent as a single frame of at
// most maxSize bytes.
func ValidateFrame(frame string, maxSize int) error {
	maxSize = clampSize(maxSize)
	if len(frame) > maxSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}
	if strings.ContainsAny(frame, "\r\n") {
		return fmt.Errorf("%w: contains a line break", ErrInvalidFrame)
	}
	if !utf8.ValidString(frame) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidFrame)
	}
	return nil
}

func clampSize(size int) int {
	if size <= 0 || size > MaxFrameSize {
		return MaxFrameSize
	}
	return size
}
