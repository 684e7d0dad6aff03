package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Hash is the content address of an event: the SHA-256 digest of its
// canonical wire encoding. Two events with identical encoded bytes are the
// same identity.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h *Hash) HashFromBytes(b []byte) error {
	if len(b) != 32 {
		return fmt.Errorf("invalid byte length for Hash: %d", len(b))
	}
	copy(h[:], b)
	return nil
}

// IsZero reports whether h is the all-zero hash, used as the parent
// reference of the genesis event.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Timestamp is a unix timestamp in milliseconds.
// We recognize that the time of computer systems is not reliable; it is an
// ordering hint for the fork-choice tie-break, not a trusted clock.
type Timestamp int64

func (t Timestamp) Bytes() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(t))
	return b
}

func (t Timestamp) String() string {
	return strconv.FormatInt(int64(t), 10)
}

func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t))
}

func (t *Timestamp) SetToNow() {
	*t = Now()
}

func Now() Timestamp {
	return Timestamp(time.Now().UnixMilli())
}

// Event is an immutable, hash-chained record of one append action.
// Its identity is the hash of its canonical encoding, so no field may be
// mutated after construction.
type Event struct {
	PreviousEventHash Hash
	Action            EventAction
	Timestamp         Timestamp
}

func (e Event) String() string {
	if e.Action == nil {
		return fmt.Sprintf("<no action> (%s)", e.Timestamp)
	}
	return fmt.Sprintf("%s (%s)", e.Action, e.Timestamp)
}
