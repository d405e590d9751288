package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
)

// Writer encodes messages as line-delimited JSON. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

var _ Tx = (*Writer)(nil)

// NewWriter returns a Writer encoding to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Send encodes msg. After the first failure every Send reports false.
func (w *Writer) Send(msg Message) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return false
	}
	if err := w.enc.Encode(msg); err != nil {
		w.err = fmt.Errorf("encode %s message: %w", msg.Type, err)
		return false
	}
	return true
}

// Err returns the first encoding failure.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Reader decodes line-delimited JSON messages.
type Reader struct {
	dec *json.Decoder
	err error
}

var _ Rx = (*Reader)(nil)

// NewReader returns a Reader decoding from r.
func NewReader(r io.Reader) *Reader {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Reader{dec: dec}
}

// Recv decodes the next message into msg. It reports false at end of input or
// on a decoding failure, which is then available from Err.
func (r *Reader) Recv(msg *Message) bool {
	if r.err != nil {
		return false
	}

	var m Message
	if err := r.dec.Decode(&m); err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = fmt.Errorf("decode message: %w", err)
		}
		return false
	}
	if !m.Type.Valid() {
		r.err = fmt.Errorf("decode message: unknown type %q", m.Type)
		return false
	}

	models.NormalizeRow(m.Data.Row)
	models.NormalizeRows(m.Data.Rows)
	*msg = m
	return true
}

// Err returns the decoding failure that stopped the Reader, if any.
func (r *Reader) Err() error {
	return r.err
}
