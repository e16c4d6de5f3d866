// Package ipc implements the length-prefixed msgpack framing spoken to
// embedding shells.
//
// Each frame is a 4-byte big-endian payload length followed by a
// msgpack payload carrying a "type" discriminant. A stream holds any
// number of "snapshot" frames and ends with a single "result" frame.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/uvlens/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including the
	// length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size.
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Frame type discriminants.
const (
	// SnapshotType marks a state snapshot frame.
	SnapshotType = "snapshot"
	// ResultType marks the terminal result frame.
	ResultType = "result"
)

// FrameErrorKind classifies frame codec errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a frame codec error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the stream is unrecoverable. There is no
// resync: once framing is lost, every later byte is suspect, so
// partial and oversized frames are fatal while a payload that merely
// fails to decode is not.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// SnapshotFrame is the wire form of a streamed snapshot.
type SnapshotFrame struct {
	Type     string         `msgpack:"type"`
	Snapshot types.Snapshot `msgpack:"snapshot"`
}

// ResultFrame is the wire form of the terminal result.
type ResultFrame struct {
	Type   string              `msgpack:"type"`
	Result types.InstallResult `msgpack:"result"`
}

// FrameWriter encodes frames onto a stream. Safe for concurrent use;
// writes are serialized so frames never interleave.
type FrameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFrameWriter creates a frame writer over w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteSnapshot writes one snapshot frame.
func (fw *FrameWriter) WriteSnapshot(snap types.Snapshot) error {
	return fw.write(SnapshotFrame{Type: SnapshotType, Snapshot: snap})
}

// WriteResult writes the terminal result frame.
func (fw *FrameWriter) WriteResult(res types.InstallResult) error {
	return fw.write(ResultFrame{Type: ResultType, Result: res})
}

func (fw *FrameWriter) write(frame any) error {
	payload, err := msgpack.Marshal(frame)
	if err != nil {
		return &FrameError{Kind: FrameErrorDecode, Msg: "failed to encode frame", Err: err}
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, err := fw.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := fw.w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}
	return payload, nil
}

// frameTypeProbe peeks at the type field without a full decode.
type frameTypeProbe struct {
	Type string `msgpack:"type"`
}

// DecodeFrame decodes a payload into a *types.Snapshot or
// *types.InstallResult based on the type discriminant.
func DecodeFrame(payload []byte) (any, error) {
	var probe frameTypeProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode frame type",
			Err:  err,
		}
	}

	switch probe.Type {
	case SnapshotType:
		return DecodeSnapshot(payload)
	case ResultType:
		return DecodeResult(payload)
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown frame type %q", probe.Type),
		}
	}
}

// DecodeSnapshot decodes a payload as a snapshot frame.
func DecodeSnapshot(payload []byte) (*types.Snapshot, error) {
	var frame SnapshotFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode snapshot frame",
			Err:  err,
		}
	}
	return &frame.Snapshot, nil
}

// DecodeResult decodes a payload as a result frame.
func DecodeResult(payload []byte) (*types.InstallResult, error) {
	var frame ResultFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode result frame",
			Err:  err,
		}
	}
	return &frame.Result, nil
}
