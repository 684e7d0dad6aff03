package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

func (e Event) MarshalJSON() ([]byte, error) {
	out := &struct {
		PreviousEventHash string `json:"previousEventHash"`
		Action            string `json:"action"`
		Nick              string `json:"nick,omitempty"`
		Msg               string `json:"msg,omitempty"`
		Timestamp         int64  `json:"timestamp"`
	}{
		PreviousEventHash: hex.EncodeToString(e.PreviousEventHash[:]),
		Timestamp:         int64(e.Timestamp),
	}

	if e.Action != nil {
		out.Action = e.Action.Tag().String()
	}

	if msg, ok := e.Action.(PrivMsg); ok {
		out.Nick = msg.Nick
		out.Msg = msg.Msg
	}

	return json.MarshalIndent(out, "", "    ")
}

func (e *Event) PrettyPrint() {
	jsonBytes, err := e.MarshalJSON()
	if err != nil {
		fmt.Println("Error marshalling Event to JSON:", err)
		return
	}

	fmt.Println(string(jsonBytes))
}
