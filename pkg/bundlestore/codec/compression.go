package codec

import (
	"bytes"
	"io"

	"github.com/cznic/zappy"
	"github.com/golang/snappy"
)

// None writes the payload uncompressed.
type None struct{}

// Name implements Compression.
func (None) Name() string { return "none" }

// NewWriter implements Compression.
func (None) NewWriter(w io.Writer) io.WriteCloser { return nopCloser{w} }

// NewReader implements Compression.
func (None) NewReader(r io.Reader) (io.Reader, error) { return r, nil }

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Snappy uses the framed snappy stream format, so large tables are
// compressed chunk by chunk without holding the whole payload.
type Snappy struct{}

// Name implements Compression.
func (Snappy) Name() string { return "snappy" }

// NewWriter implements Compression. Close flushes the final frame but does
// not close w.
func (Snappy) NewWriter(w io.Writer) io.WriteCloser { return snappy.NewBufferedWriter(w) }

// NewReader implements Compression.
func (Snappy) NewReader(r io.Reader) (io.Reader, error) { return snappy.NewReader(r), nil }

// Zappy uses zappy block compression. The payload is buffered in memory and
// compressed as a single block on Close.
type Zappy struct{}

// Name implements Compression.
func (Zappy) Name() string { return "zappy" }

// NewWriter implements Compression.
func (Zappy) NewWriter(w io.Writer) io.WriteCloser { return &zappyWriter{w: w} }

// NewReader implements Compression.
func (Zappy) NewReader(r io.Reader) (io.Reader, error) {
	block, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data, err := zappy.Decode(nil, block)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

type zappyWriter struct {
	w   io.Writer
	buf bytes.Buffer
}

func (z *zappyWriter) Write(p []byte) (int, error) {
	return z.buf.Write(p)
}

func (z *zappyWriter) Close() error {
	block, err := zappy.Encode(nil, z.buf.Bytes())
	if err != nil {
		return err
	}
	_, err = z.w.Write(block)
	return err
}
