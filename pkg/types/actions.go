package types

import "fmt"

// ActionTag is the wire tag byte that selects the action variant of an
// event. New action kinds get new tags; existing tags keep their byte value
// forever so old events stay decodable.
type ActionTag byte

const (
	TagPrivMsg ActionTag = 0
)

func (t ActionTag) String() string {
	switch t {
	case TagPrivMsg:
		return "PrivMsg"
	}
	return "Unknown"
}

func (t ActionTag) Byte() byte {
	return byte(t)
}

// EventAction is the open sum of things an event can append to the log.
// Currently only PrivMsg exists.
type EventAction interface {
	Tag() ActionTag
	fmt.Stringer
}

// PrivMsg is a chat message from nick.
type PrivMsg struct {
	Nick string
	Msg  string
}

func (p PrivMsg) Tag() ActionTag {
	return TagPrivMsg
}

func (p PrivMsg) String() string {
	return fmt.Sprintf("PRIVMSG %s: %s", p.Nick, p.Msg)
}
