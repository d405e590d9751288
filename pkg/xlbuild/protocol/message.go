// Package protocol defines the messages exchanged between a document builder and
// the background worker that writes the document.
//
// Every message is a tagged union {type, data}. Messages own their payload: rows are
// copied when a message is built, so no mutable state is shared between the sender
// and the receiver. Cells are converted to JSON scalars on the way in (see
// models.ScalarCell), so a message carries the same values in memory and on the wire.
package protocol

import (
	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
)

// Type identifies a message.
type Type string

const (
	// TypeRow appends one row to a sheet (builder to worker).
	TypeRow Type = "row"
	// TypeRows appends many rows to a sheet (builder to worker).
	TypeRows Type = "rows"
	// TypeFlushSheet commits a sheet (builder to worker) or reports the commit (worker to builder).
	TypeFlushSheet Type = "flushsheet"
	// TypeFlush finalizes the document (builder to worker).
	TypeFlush Type = "flush"
	// TypeFile reports the finalized document path (worker to builder).
	TypeFile Type = "file"
	// TypeError reports a construction failure (worker to builder).
	TypeError Type = "error"

	TypeStart       Type = "start"
	TypeFileStart   Type = "filestart"
	TypeFileEnd     Type = "fileend"
	TypeStreamStart Type = "streamstart"
	TypeStreamEnd   Type = "streamend"
)

// Lifecycle reports whether t is a notification relayed verbatim to builder listeners.
func (t Type) Lifecycle() bool {
	switch t {
	case TypeStart, TypeFlush, TypeFlushSheet, TypeFileStart, TypeFileEnd, TypeStreamStart, TypeStreamEnd:
		return true
	default:
		return false
	}
}

// Valid reports whether t is a known message type.
func (t Type) Valid() bool {
	switch t {
	case TypeRow, TypeRows, TypeFile, TypeError:
		return true
	default:
		return t.Lifecycle()
	}
}

// Payload carries the type-specific data of a message.
type Payload struct {
	Name  string       `json:"name,omitempty"`
	Row   models.Row   `json:"row,omitempty"`
	Rows  []models.Row `json:"rows,omitempty"`
	Path  string       `json:"path,omitempty"`
	Error string       `json:"error,omitempty"`
}

// Message is the unit exchanged over a channel.
type Message struct {
	Type Type    `json:"type"`
	Data Payload `json:"data"`
}

// Row returns a message appending row to the named sheet.
func Row(name string, row models.Row) Message {
	return Message{Type: TypeRow, Data: Payload{Name: name, Row: models.ScalarRow(row)}}
}

// Rows returns a message appending rows to the named sheet.
func Rows(name string, rows []models.Row) Message {
	copied := make([]models.Row, len(rows))
	for i, row := range rows {
		copied[i] = models.ScalarRow(row)
	}
	return Message{Type: TypeRows, Data: Payload{Name: name, Rows: copied}}
}

// FlushSheet returns a message committing the named sheet.
func FlushSheet(name string) Message {
	return Message{Type: TypeFlushSheet, Data: Payload{Name: name}}
}

// Flush returns a message finalizing the document.
func Flush() Message {
	return Message{Type: TypeFlush}
}

// File returns a message reporting the finalized document path.
func File(path string) Message {
	return Message{Type: TypeFile, Data: Payload{Path: path}}
}

// Error returns a message reporting err.
func Error(err error) Message {
	return Message{Type: TypeError, Data: Payload{Error: err.Error()}}
}

// Event returns a lifecycle notification.
func Event(t Type, name, path string) Message {
	return Message{Type: t, Data: Payload{Name: name, Path: path}}
}

// Rx receives messages. Recv blocks until a message is available and reports
// false once the channel is closed and drained.
type Rx interface {
	Recv(*Message) bool
}

// Tx sends messages. Send reports false when the channel no longer accepts messages.
type Tx interface {
	Send(Message) bool
}
