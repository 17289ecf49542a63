package compression

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/pipeline"
)

// Phase names used in operation configuration
const (
	CompressPhaseName   = "gzip-compress"
	DecompressPhaseName = "gzip-decompress"
)

// EncodingGzip marks a compressed message payload
const EncodingGzip = "gzip"

// DefaultMaxSize bounds decompressed payloads unless WithMaxSize overrides it
const DefaultMaxSize int64 = 64 << 20

// ErrTooLarge is returned when a payload inflates beyond the configured limit
var ErrTooLarge = errors.New("decompressed payload too large")

// content types that are already compressed
var precompressed = map[string]bool{
	"application/gzip":   true,
	"application/zip":    true,
	"application/x-gzip": true,
	"image/jpeg":         true,
	"image/png":          true,
	"video/mp4":          true,
	"audio/mp3":          true,
}

// ShouldCompress reports whether payloads of contentType benefit from gzip
func ShouldCompress(contentType string) bool {
	return !precompressed[contentType]
}

type options struct {
	level   int
	maxSize int64
}

// Option configures the compression phases
type Option func(*options)

// WithLevel sets the gzip level of the compress phase
func WithLevel(level int) Option {
	return func(o *options) { o.level = level }
}

// WithMaxSize bounds the size of decompressed payloads. Zero or less
// disables the bound.
func WithMaxSize(n int64) Option {
	return func(o *options) { o.maxSize = n }
}

// Phases returns the compress phase for outbound flows and the decompress
// phase for inbound flows. Only *message.Bytes payloads are processed.
func Phases(opts ...Option) (compress, decompress pipeline.Phase, err error) {
	o := options{level: gzip.DefaultCompression, maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := gzip.NewWriterLevel(io.Discard, o.level); err != nil {
		return nil, nil, fmt.Errorf("gzip level %d: %w", o.level, err)
	}

	w := &deflater{level: o.level}
	r := &inflater{maxSize: o.maxSize}
	return pipeline.NewPhase(CompressPhaseName, w.invoke),
		pipeline.NewPhase(DecompressPhaseName, r.invoke),
		nil
}

// deflater streams payloads through pooled gzip writers
type deflater struct {
	level int
	pool  sync.Pool
}

func (d *deflater) invoke(ctx context.Context, msg *message.Message) (*message.Message, error) {
	b, ok := message.AsBytes(msg)
	if !ok || b.Encoding != "" || !ShouldCompress(b.ContentType) {
		return msg, nil
	}

	var buf bytes.Buffer
	zw, _ := d.pool.Get().(*gzip.Writer)
	if zw == nil {
		zw, _ = gzip.NewWriterLevel(&buf, d.level)
	} else {
		zw.Reset(&buf)
	}
	defer d.pool.Put(zw)

	if _, err := zw.Write(b.Data); err != nil {
		return nil, fmt.Errorf("gzip payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip payload: %w", err)
	}
	return msg.WithPayload(&message.Bytes{
		Data:        buf.Bytes(),
		ContentType: b.ContentType,
		Encoding:    EncodingGzip,
	}), nil
}

// inflater restores gzip-encoded payloads, faulting the sender for
// corrupt or oversized data
type inflater struct {
	maxSize int64
	pool    sync.Pool
}

func (i *inflater) invoke(ctx context.Context, msg *message.Message) (*message.Message, error) {
	b, ok := message.AsBytes(msg)
	if !ok || b.Encoding != EncodingGzip {
		return msg, nil
	}

	data, err := i.inflate(b.Data)
	if err != nil {
		return nil, &pipeline.Fault{
			Code:   pipeline.CodeSender,
			Reason: "DecompressionFailure",
			Err:    err,
		}
	}
	return msg.WithPayload(&message.Bytes{
		Data:        data,
		ContentType: b.ContentType,
	}), nil
}

func (i *inflater) inflate(data []byte) ([]byte, error) {
	src := bytes.NewReader(data)
	zr, _ := i.pool.Get().(*gzip.Reader)
	if zr == nil {
		var err error
		if zr, err = gzip.NewReader(src); err != nil {
			return nil, err
		}
	} else if err := zr.Reset(src); err != nil {
		return nil, err
	}
	defer i.pool.Put(zr)

	var r io.Reader = zr
	if i.maxSize > 0 {
		r = io.LimitReader(zr, i.maxSize+1)
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return nil, err
	}
	if i.maxSize > 0 && n > i.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, i.maxSize)
	}
	return buf.Bytes(), nil
}
