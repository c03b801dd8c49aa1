// Package scanner peeks at top-level fields of a JSON message without decoding it.
package scanner

import "bytes"

// StringField returns the raw string value following key, e.g. key `"type"`.
// Escapes are not interpreted.
func StringField(payload []byte, key []byte) ([]byte, bool) {
	i, ok := valueStart(payload, key)
	if !ok || payload[i] != '"' {
		return nil, false
	}
	i++
	end := bytes.IndexByte(payload[i:], '"')
	if end < 0 {
		return nil, false
	}
	return payload[i : i+end], true
}

func valueStart(payload []byte, key []byte) (int, bool) {
	if len(key) == 0 {
		return 0, false
	}
	idx := bytes.Index(payload, key)
	if idx < 0 {
		return 0, false
	}
	i := idx + len(key)
	for i < len(payload) && isSpace(payload[i]) {
		i++
	}
	if i >= len(payload) || payload[i] != ':' {
		return 0, false
	}
	i++
	for i < len(payload) && isSpace(payload[i]) {
		i++
	}
	if i >= len(payload) {
		return 0, false
	}
	return i, true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
