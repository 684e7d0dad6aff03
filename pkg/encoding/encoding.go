// Package encoding implements the canonical wire framing of events.
//
// The layout is a wire-compatibility invariant: every replica must produce
// bit-identical bytes for the same event or content hashes will disagree
// across the network. Field order, the 4-byte little-endian text length
// prefix and little-endian integers are all part of that contract.
//
//	[action tag: 1 byte]
//	[previous event hash: 32 bytes]
//	[action-specific fields]
//	[timestamp: 8 bytes, little-endian unix milliseconds]
//
// Action tag 0 (PrivMsg) fields:
//
//	[nick length: 4 bytes little-endian][nick: UTF-8 bytes]
//	[msg length: 4 bytes little-endian][msg: UTF-8 bytes]
package encoding

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/narodnik/mvc-ircd/pkg/types"
)

const (
	hashSize      = 32
	timestampSize = 8
	lenPrefixSize = 4
)

// FormatError describes malformed or unrecognized encoded event bytes.
// It is raised only at decode time; bytes that fail to decode must never
// reach the event store.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "mvc-ircd: bad event format: " + e.Reason
}

func formatErrorf(format string, args ...interface{}) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// Encode serializes event into its canonical byte representation.
// It fails only for action variants unknown to this implementation; such
// events have no canonical form and therefore no identity.
func Encode(event types.Event) ([]byte, error) {
	if event.Action == nil {
		return nil, fmt.Errorf("cannot encode event without an action")
	}

	var buf bytes.Buffer
	buf.WriteByte(event.Action.Tag().Byte())
	buf.Write(event.PreviousEventHash.Bytes())

	switch action := event.Action.(type) {
	case types.PrivMsg:
		writeString(&buf, action.Nick)
		writeString(&buf, action.Msg)
	default:
		return nil, fmt.Errorf("cannot encode unknown action tag %d", event.Action.Tag())
	}

	buf.Write(event.Timestamp.Bytes())

	return buf.Bytes(), nil
}

// Decode parses canonical event bytes. Any malformation, an unrecognized
// action tag, truncation or trailing garbage, yields a FormatError.
func Decode(data []byte) (types.Event, error) {
	var event types.Event

	if len(data) < 1+hashSize {
		return event, formatErrorf("event too short: %d bytes", len(data))
	}

	tag := types.ActionTag(data[0])
	if err := event.PreviousEventHash.HashFromBytes(data[1 : 1+hashSize]); err != nil {
		return event, formatErrorf("previous event hash: %v", err)
	}
	rest := data[1+hashSize:]

	switch tag {
	case types.TagPrivMsg:
		nick, n, err := readString(rest)
		if err != nil {
			return event, fmt.Errorf("nick: %w", err)
		}
		rest = rest[n:]

		msg, n, err := readString(rest)
		if err != nil {
			return event, fmt.Errorf("msg: %w", err)
		}
		rest = rest[n:]

		event.Action = types.PrivMsg{Nick: nick, Msg: msg}
	default:
		return types.Event{}, formatErrorf("bad action tag byte %d", tag)
	}

	if len(rest) < timestampSize {
		return types.Event{}, formatErrorf("truncated timestamp")
	}
	event.Timestamp = types.Timestamp(binary.LittleEndian.Uint64(rest[:timestampSize]))
	rest = rest[timestampSize:]

	if len(rest) != 0 {
		return types.Event{}, formatErrorf("%d trailing bytes after event", len(rest))
	}

	return event, nil
}

// HashEvent computes the content address of an event: the SHA-256 digest of
// its canonical encoding. Stable across processes for identical events.
func HashEvent(event types.Event) (types.Hash, error) {
	data, err := Encode(event)
	if err != nil {
		return types.Hash{}, fmt.Errorf("error hashing event: %w", err)
	}
	return types.Hash(sha256.Sum256(data)), nil
}

func writeString(buf *bytes.Buffer, s string) {
	lenBytes := make([]byte, lenPrefixSize)
	binary.LittleEndian.PutUint32(lenBytes, uint32(len(s)))
	buf.Write(lenBytes)
	buf.WriteString(s)
}

func readString(data []byte) (string, int, error) {
	if len(data) < lenPrefixSize {
		return "", 0, formatErrorf("truncated string length prefix")
	}

	// Compared in uint64 space: a hostile prefix >= 2^31 must not wrap to a
	// negative int on 32-bit platforms and slip past the bounds check.
	strLen := binary.LittleEndian.Uint32(data)
	if uint64(len(data)-lenPrefixSize) < uint64(strLen) {
		return "", 0, formatErrorf("string length %d exceeds remaining %d bytes", strLen, len(data)-lenPrefixSize)
	}

	return string(data[lenPrefixSize : lenPrefixSize+int(strLen)]), lenPrefixSize + int(strLen), nil
}
