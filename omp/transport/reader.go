package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/smnsjas/go-omp/entity"
)

// DefaultBufferSize is the default upper bound on a single receive. It does
// not limit the size of a response, which may span any number of receives.
const DefaultBufferSize = 1 << 20 // 1 MiB

var (
	// ErrEndOfStream is returned when the peer closes the stream before the
	// response document is complete.
	ErrEndOfStream = errors.New("transport: connection closed before response was complete")

	// ErrTransport wraps a failure reported by the underlying Conn.
	ErrTransport = errors.New("transport: receive failed")

	// ErrParse wraps malformed response markup. The stream position after a
	// parse error is unknown, so the connection should be abandoned.
	ErrParse = errors.New("transport: malformed response")
)

// Reader reads OMP responses from a Conn, one document per call.
type Reader struct {
	conn    Conn
	buf     []byte
	pending []byte // received after the previous document ended
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithBufferSize sets the staging buffer size. Values below 1 are ignored.
func WithBufferSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.buf = make([]byte, n)
		}
	}
}

// NewReader creates a Reader with its own staging buffer.
func NewReader(conn Conn, opts ...ReaderOption) *Reader {
	r := &Reader{conn: conn}
	for _, opt := range opts {
		opt(r)
	}
	if r.buf == nil {
		r.buf = make([]byte, DefaultBufferSize)
	}
	return r
}

// ReadResponse blocks until one complete response document has been received
// and returns its root. It returns as soon as the root end-tag is parsed.
func (r *Reader) ReadResponse(ctx context.Context) (*entity.Entity, error) {
	root, _, err := r.read(ctx, false)
	return root, err
}

// ReadResponseText is like ReadResponse but also returns the exact bytes of
// the document as they arrived on the wire.
func (r *Reader) ReadResponseText(ctx context.Context) (*entity.Entity, []byte, error) {
	return r.read(ctx, true)
}

func (r *Reader) read(ctx context.Context, keepText bool) (*entity.Entity, []byte, error) {
	b := entity.NewBuilder()
	var (
		text     []byte
		received int
	)

	// feed reports whether the document is complete.
	feed := func(chunk []byte) (bool, error) {
		n, err := b.Feed(chunk)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrParse, err)
		}
		if keepText {
			text = append(text, chunk[:n]...)
		}
		if !b.Done() {
			return false, nil
		}
		if rest := chunk[n:]; len(rest) > 0 {
			r.pending = append([]byte(nil), rest...)
		}
		return true, nil
	}

	if len(r.pending) > 0 {
		chunk := r.pending
		r.pending = nil
		done, err := feed(chunk)
		if err != nil {
			return nil, nil, err
		}
		if done {
			return b.Root(), text, nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		n, err := r.conn.Receive(ctx, r.buf)
		if isRetryable(err) && n == 0 {
			continue
		}
		if n > 0 {
			received += n
			done, ferr := feed(r.buf[:n])
			if ferr != nil {
				return nil, nil, ferr
			}
			if done {
				return b.Root(), text, nil
			}
		}

		switch {
		case err == nil && n > 0:
		case err == nil || errors.Is(err, io.EOF):
			_ = b.End()
			return nil, nil, fmt.Errorf("%w (%d bytes received)", ErrEndOfStream, received)
		case isRetryable(err):
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return nil, nil, err
		default:
			return nil, nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}
}
