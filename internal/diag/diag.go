// Package diag collects the recoverable diagnostics the decoder produces
// while walking a .blend file (unknown struct indices, unparseable member
// spellings, unresolved heuristic rules) and mirrors them to a structured
// logger. Nothing in this package can fail the parse; it only observes it.
package diag

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Kind classifies a recoverable condition. These mirror the recoverable
// error kinds named in the format specification; fatal conditions never
// reach this package, they abort Open directly.
type Kind string

const (
	// UnknownStructIndex is recorded when a block names an SDNA struct
	// index with no corresponding definition. The block scanner also
	// records it when it stops at the MaxBlocks limit.
	UnknownStructIndex Kind = "unknown_struct_index"
	// UnknownTypeName is recorded when a member or struct names a type
	// absent from both the primitive table and the SDNA struct table.
	UnknownTypeName Kind = "unknown_type_name"
	// ParseMemberSpelling is recorded when a member spelling matches
	// neither the principal nor the function-pointer pattern.
	ParseMemberSpelling Kind = "parse_member_spelling"
	// Utf8Decode is recorded when a char[D] member's bytes are not valid
	// UTF-8; the raw bytes are kept and the parse continues regardless.
	Utf8Decode Kind = "utf8_decode"
	// HeuristicUnresolved is recorded when a block has no SDNA layout and
	// none of the inferencer's rules match its back-reference set, and when
	// the PreviewImage rule matches but no image sink is configured.
	HeuristicUnresolved Kind = "heuristic_unresolved"
)

// Entry is one recorded diagnostic.
type Entry struct {
	Kind         Kind
	Message      string
	BlockCode    string
	BlockAddress uint64
}

// Collector accumulates diagnostics for a single Open call and forwards
// each one to a logger, tagged with a session id so diagnostics from
// concurrent or sequential Open calls in the same process can be told apart
// in aggregated log output.
type Collector struct {
	sessionID string
	log       *logrus.Logger
	entries   []Entry
}

// NewCollector returns a Collector bound to log, or to logrus's standard
// logger if log is nil.
func NewCollector(log *logrus.Logger) *Collector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Collector{sessionID: uuid.NewString(), log: log}
}

// Warn records a diagnostic and emits it at Warn level.
func (c *Collector) Warn(kind Kind, blockCode string, blockAddress uint64, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.entries = append(c.entries, Entry{
		Kind:         kind,
		Message:      msg,
		BlockCode:    blockCode,
		BlockAddress: blockAddress,
	})
	c.log.WithFields(logrus.Fields{
		"session":       c.sessionID,
		"kind":          string(kind),
		"block_code":    blockCode,
		"block_address": fmt.Sprintf("0x%x", blockAddress),
	}).Warn(msg)
}

// Entries returns every diagnostic recorded so far, in recording order.
func (c *Collector) Entries() []Entry {
	return c.entries
}

// SessionID returns the correlation id attached to every log line this
// collector has emitted.
func (c *Collector) SessionID() string {
	return c.sessionID
}
