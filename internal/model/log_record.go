package model

import (
	"encoding/json"
)

// LogRecord is the journal representation of a pool event: an ABI-encoded log
// emitted by the pool account.
type LogRecord struct {
	Sequence   uint64   `json:"sequence"`
	Address    string   `json:"address"`
	Topics     []string `json:"topics"`
	Data       string   `json:"data"`
	Timestamp  uint64   `json:"timestamp"`
	IngestedAt string   `json:"ingested_at"`
}

// MarshalJSON ensures LogRecord is encoded with stable field names.
func (lr LogRecord) MarshalJSON() ([]byte, error) {
	type Alias LogRecord
	return json.Marshal(Alias(lr))
}

// UnmarshalJSON decodes a LogRecord from JSON.
func (lr *LogRecord) UnmarshalJSON(data []byte) error {
	type Alias LogRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*lr = LogRecord(a)
	return nil
}

// DecodeError records a journal line that could not be decoded.
type DecodeError struct {
	Sequence uint64 `json:"sequence"`
	Address  string `json:"address"`
	Topic0   string `json:"topic0"`
	Error    string `json:"error"`
}
