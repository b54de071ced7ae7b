package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Version identifies the server software name and the protocol revision the
// response was built for. The protocol field must match the connecting
// client, which is why cached packets are fragmented per protocol version.
type Version struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

// SamplePlayer is one entry of the player sample shown in the client's
// server list tooltip.
type SamplePlayer struct {
	Name string    `json:"name"`
	ID   uuid.UUID `json:"id"`
}

// Players carries the online/max player counts and an optional sample.
type Players struct {
	Online int            `json:"online"`
	Max    int            `json:"max"`
	Sample []SamplePlayer `json:"sample,omitempty"`
}

// StatusResponse is the JSON document carried by a status response packet.
// Description is kept raw: clients accept either a plain JSON string or a
// structured rich-text object, and the cache never needs to look inside it.
type StatusResponse struct {
	Version     Version         `json:"version"`
	Players     *Players        `json:"players,omitempty"`
	Description json.RawMessage `json:"description"`
	Favicon     string          `json:"favicon,omitempty"`
}

// TextDescription renders plain text as a minimal rich-text description
// object. Rich markup rendering is out of scope here; anything beyond plain
// text must arrive already rendered.
func TextDescription(text string) (json.RawMessage, error) {
	raw, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("encode description: %w", err)
	}
	return raw, nil
}
