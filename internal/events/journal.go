package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

// JournalSink encodes committed pool events and appends them to a log sink.
type JournalSink struct {
	codec *Codec
	sink  storage.Storage
	now   func() time.Time
}

// NewJournalSink wraps a storage sink.
func NewJournalSink(sink storage.Storage) (*JournalSink, error) {
	codec, err := NewCodec()
	if err != nil {
		return nil, err
	}
	return &JournalSink{codec: codec, sink: sink, now: time.Now}, nil
}

// Publish implements amm.EventSink.
func (j *JournalSink) Publish(ctx context.Context, ev model.PoolEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record, err := j.codec.Encode(ev)
	if err != nil {
		return err
	}
	record.IngestedAt = j.now().UTC().Format(time.RFC3339)
	return j.sink.PutLogBatch([]model.LogRecord{record})
}

// ReadJournal calls fn for every record of a JSONL journal, in file order.
func ReadJournal(path string, fn func(model.LogRecord) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var record model.LogRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return fmt.Errorf("journal line %d: %w", line, err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	return nil
}
