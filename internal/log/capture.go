package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/smnsjas/go-omp/omp"
)

// Event is one captured OMP document. Keys are integers for compactness.
type Event struct {
	Time      time.Time     `cbor:"1,keyasint"`
	Session   string        `cbor:"2,keyasint"`
	Direction omp.Direction `cbor:"3,keyasint"`
	Payload   []byte        `cbor:"4,keyasint"`
}

var (
	captureEncMode cbor.EncMode
	captureDecMode cbor.DecMode
)

func init() {
	var err error
	captureEncMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor encoder mode: %v", err))
	}
	captureDecMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor decoder mode: %v", err))
	}
}

// CaptureFile appends every exchanged document to a file as a stream of CBOR
// events. Password and rc file bodies are masked before they are written.
// It implements omp.Recorder and is safe for concurrent use.
type CaptureFile struct {
	mu      sync.Mutex
	file    *os.File
	enc     *cbor.Encoder
	session string
	now     func() time.Time
	err     error
}

var _ omp.Recorder = (*CaptureFile)(nil)

// NewCaptureFile opens path for appending, tagging each event with session.
func NewCaptureFile(path, session string) (*CaptureFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	return &CaptureFile{
		file:    f,
		enc:     captureEncMode.NewEncoder(f),
		session: session,
		now:     time.Now,
	}, nil
}

// Record implements omp.Recorder. Write failures never reach the protocol
// client; the first one is kept and returned by Close.
func (c *CaptureFile) Record(dir omp.Direction, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil || c.err != nil {
		return
	}
	ev := Event{
		Time:      c.now().UTC(),
		Session:   c.session,
		Direction: dir,
		Payload:   []byte(MaskMarkup(string(data))),
	}
	if err := c.enc.Encode(ev); err != nil {
		c.err = fmt.Errorf("write capture event: %w", err)
	}
}

// Close closes the file and reports the first write failure, if any.
func (c *CaptureFile) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return c.err
	}
	err := c.file.Close()
	c.file = nil
	return errors.Join(c.err, err)
}

// CaptureReader streams events back out of a capture file.
type CaptureReader struct {
	file *os.File
	dec  *cbor.Decoder
}

// OpenCapture opens a capture file for reading.
func OpenCapture(path string) (*CaptureReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &CaptureReader{file: f, dec: captureDecMode.NewDecoder(f)}, nil
}

// Next returns the next event, or io.EOF at the end of the file.
func (r *CaptureReader) Next() (Event, error) {
	var ev Event
	if err := r.dec.Decode(&ev); err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		return Event{}, fmt.Errorf("decode capture event: %w", err)
	}
	return ev, nil
}

// Close closes the underlying file.
func (r *CaptureReader) Close() error {
	return r.file.Close()
}
