package recorder

import (
	"bufio"
	"io"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/yanun0323/errors"
)

// Reader decodes the records of one segment in order.
type Reader struct {
	r            *bufio.Reader
	skipChecksum bool
	maxPayload   int
	header       []byte
	payload      []byte
	trailer      [trailerSize]byte
	offset       int64
}

func NewReader(r io.Reader, skipChecksum bool, maxPayloadSize int) *Reader {
	if maxPayloadSize <= 0 || maxPayloadSize > maxPayload {
		maxPayloadSize = maxPayload
	}
	return &Reader{
		r:            bufio.NewReader(r),
		skipChecksum: skipChecksum,
		maxPayload:   maxPayloadSize,
		header:       make([]byte, headerSize),
	}
}

// Offset is the byte position just past the last record returned.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Next returns the next record. The payload is only valid until the following call.
// It returns io.EOF at a clean end of file and exception.ErrJournalTornRecord for a truncated tail.
func (r *Reader) Next() (schema.EventHeader, []byte, error) {
	if err := r.read(r.header, true); err != nil {
		return schema.EventHeader{}, nil, err
	}
	header, n, err := parseHeader(r.header)
	if err != nil {
		return header, nil, err
	}
	if n > r.maxPayload {
		return header, nil, exception.ErrJournalPayloadTooLarge
	}

	if cap(r.payload) < n {
		r.payload = make([]byte, n)
	}
	r.payload = r.payload[:n]
	if err := r.read(r.payload, false); err != nil {
		return header, nil, err
	}
	if err := r.read(r.trailer[:], false); err != nil {
		return header, nil, err
	}
	if !r.skipChecksum && le.Uint32(r.trailer[:]) != crcOf(r.header, r.payload) {
		return header, nil, exception.ErrJournalChecksum
	}

	r.offset += int64(recordOverhead + n)
	return header, r.payload, nil
}

func (r *Reader) read(dst []byte, first bool) error {
	n, err := io.ReadFull(r.r, dst)
	switch {
	case err == nil:
		return nil
	case first && n == 0 && err == io.EOF:
		return io.EOF
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return exception.ErrJournalTornRecord
	default:
		return errors.Wrapf(err, "read at offset %d", r.offset)
	}
}
