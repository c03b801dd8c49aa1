package exception

import "errors"

var (
	ErrJournalClosed          = errors.New("journal: writer closed")
	ErrJournalNotStarted      = errors.New("journal: writer not started")
	ErrJournalAlreadyStarted  = errors.New("journal: writer already started")
	ErrJournalQueueFull       = errors.New("journal: queue full")
	ErrJournalPayloadTooLarge = errors.New("journal: payload too large")
)

// Decoding errors. A torn record at the end of the last segment is not one of these.
var (
	ErrJournalBadMagic      = errors.New("journal: invalid magic")
	ErrJournalBadVersion    = errors.New("journal: unsupported record version")
	ErrJournalBadHeaderSize = errors.New("journal: invalid header size")
	ErrJournalChecksum      = errors.New("journal: checksum mismatch")
	// ErrJournalTornRecord marks a record cut short by the end of its file.
	ErrJournalTornRecord = errors.New("journal: torn record")
)
