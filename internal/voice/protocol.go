package voice

import "github.com/google/uuid"

// Client to server frame types.
const (
	ClientTypeAudioChunk = "audio_chunk"
	ClientTypeEnd        = "end"
)

// Server to client frame types.
const (
	ServerTypeSessionStarted  = "session_started"
	ServerTypeProgress        = "progress"
	ServerTypeOverrun         = "overrun"
	ServerTypeTranscriptDelta = "transcript_delta"
	ServerTypeClarification   = "clarification"
	ServerTypeError           = "error"
)

// ClientMessage is one inbound frame on the voice socket. Audio bytes are
// base64 in the JSON encoding.
type ClientMessage struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq,omitempty"`
	Data []byte `json:"data,omitempty"`
}

// ServerMessage is one outbound frame on the voice socket.
type ServerMessage struct {
	Type          string    `json:"type"`
	SessionID     uuid.UUID `json:"session_id"`
	CreditLimit   int       `json:"credit_limit,omitempty"`
	Seq           int64     `json:"seq,omitempty"`
	BytesReceived int64     `json:"bytes_received,omitempty"`
	Transcript    string    `json:"transcript,omitempty"`
	Question      string    `json:"question,omitempty"`
	Message       string    `json:"message,omitempty"`
}
