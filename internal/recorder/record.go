package recorder

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"
)

// On-disk record: 52 byte header, payload, crc32c over header and payload.
//
//	0  magic "BKJ2"       4
//	4  header size        2
//	6  type               2
//	8  schema version     2
//	10 source             2
//	12 flags              2
//	14 reserved           2
//	16 payload length     4
//	20 seq                8
//	28 ts event (ns)      8
//	36 ts recv (ns)       8
//	44 trace id           8
const (
	headerSize     = 52
	trailerSize    = 4
	recordOverhead = headerSize + trailerSize
	maxPayload     = 16 << 20
)

var (
	magic    = [4]byte{'B', 'K', 'J', '2'}
	crcTable = crc32.MakeTable(crc32.Castagnoli)
	le       = binary.LittleEndian
)

func putHeader(dst []byte, h schema.EventHeader, payloadLen int) []byte {
	dst = append(dst[:0], magic[:]...)
	dst = le.AppendUint16(dst, headerSize)
	dst = le.AppendUint16(dst, uint16(h.Type))
	dst = le.AppendUint16(dst, h.Version)
	dst = le.AppendUint16(dst, h.Source)
	dst = le.AppendUint16(dst, h.Flags)
	dst = le.AppendUint16(dst, 0)
	dst = le.AppendUint32(dst, uint32(payloadLen))
	dst = le.AppendUint64(dst, h.Seq)
	dst = le.AppendUint64(dst, uint64(h.TsEvent))
	dst = le.AppendUint64(dst, uint64(h.TsRecv))
	return le.AppendUint64(dst, h.TraceID)
}

func parseHeader(src []byte) (schema.EventHeader, int, error) {
	if !bytes.Equal(src[0:4], magic[:]) {
		return schema.EventHeader{}, 0, exception.ErrJournalBadMagic
	}
	if le.Uint16(src[4:6]) != headerSize {
		return schema.EventHeader{}, 0, exception.ErrJournalBadHeaderSize
	}
	h := schema.EventHeader{
		Type:    schema.EventType(le.Uint16(src[6:8])),
		Version: le.Uint16(src[8:10]),
		Source:  le.Uint16(src[10:12]),
		Flags:   le.Uint16(src[12:14]),
		Seq:     le.Uint64(src[20:28]),
		TsEvent: int64(le.Uint64(src[28:36])),
		TsRecv:  int64(le.Uint64(src[36:44])),
		TraceID: le.Uint64(src[44:52]),
	}
	if h.Version == 0 || h.Version > schema.SchemaVersion {
		return h, 0, exception.ErrJournalBadVersion
	}
	return h, int(le.Uint32(src[16:20])), nil
}

func crcOf(header, payload []byte) uint32 {
	return crc32.Update(crc32.Checksum(header, crcTable), crcTable, payload)
}
