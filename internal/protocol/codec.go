package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Frame delimiter. JSON string escaping guarantees a raw LF can never
// appear inside an encoded envelope, so the delimiter is unambiguous.
const frameDelim = '\n'

// DefaultMaxFrameBytes bounds a single frame when no limit is configured.
const DefaultMaxFrameBytes = 64 * 1024

// ErrFrameTooLarge reports a frame exceeding the reader's size limit. The
// oversized frame is consumed and discarded; subsequent frames remain
// readable.
var ErrFrameTooLarge = errors.New("frame exceeds size limit")

// Encode serializes one envelope into a self-delimited frame.
//
// Postcondition: Returns the JSON envelope followed by the frame delimiter.
func Encode(msgType string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", msgType, err)
	}
	frame, err := json.Marshal(Envelope{Type: msgType, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", msgType, err)
	}
	return append(frame, frameDelim), nil
}

// MustEncode encodes a server-constructed payload whose shape is known to
// marshal. It exists for outbound paths where an encode failure would be a
// programming error, not a runtime condition.
func MustEncode(msgType string, data any) []byte {
	frame, err := Encode(msgType, data)
	if err != nil {
		panic(fmt.Sprintf("encoding %s: %v", msgType, err))
	}
	return frame
}

// FrameReader extracts delimited frames from a byte stream. Two messages
// sent back-to-back, or one message split across transport reads, are
// always returned as distinct complete frames.
type FrameReader struct {
	r   *bufio.Reader
	max int
}

// NewFrameReader wraps r with frame extraction. maxBytes <= 0 selects
// DefaultMaxFrameBytes.
func NewFrameReader(r io.Reader, maxBytes int) *FrameReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	return &FrameReader{
		r:   bufio.NewReaderSize(r, 4096),
		max: maxBytes,
	}
}

// ReadFrame returns the next complete frame without its delimiter.
//
// An oversized frame is consumed to its delimiter and reported as
// ErrFrameTooLarge; the reader stays usable. Any other error is a
// transport-level failure.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := fr.r.ReadSlice(frameDelim)
		buf = append(buf, chunk...)

		switch {
		case err == nil:
			if len(buf) > fr.max+1 {
				return nil, ErrFrameTooLarge
			}
			return trimFrame(buf), nil
		case errors.Is(err, bufio.ErrBufferFull):
			if len(buf) > fr.max {
				if derr := fr.discardToDelim(); derr != nil {
					return nil, derr
				}
				return nil, ErrFrameTooLarge
			}
		default:
			return nil, err
		}
	}
}

// discardToDelim consumes the remainder of an oversized frame.
func (fr *FrameReader) discardToDelim() error {
	for {
		_, err := fr.r.ReadSlice(frameDelim)
		if err == nil {
			return nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

func trimFrame(buf []byte) []byte {
	buf = bytes.TrimSuffix(buf, []byte{frameDelim})
	buf = bytes.TrimSuffix(buf, []byte{'\r'})
	return buf
}
