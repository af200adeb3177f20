package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

type jsonlWriter struct {
	enc *json.Encoder
}

type jsonRecord struct {
	TS     string `json:"ts"`
	Type   string `json:"type"`
	Header string `json:"header"`
	X      *int16 `json:"x,omitempty"`
	Y      *int16 `json:"y,omitempty"`
	Z      *int16 `json:"z,omitempty"`
}

func newJSONLWriter(w io.Writer) *jsonlWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &jsonlWriter{enc: enc}
}

// Consume writes every event until in is closed. It stops at the first
// write error.
func (j *jsonlWriter) Consume(in <-chan event) error {
	for ev := range in {
		if err := j.Write(ev); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}

func (j *jsonlWriter) Write(ev event) error {
	return j.enc.Encode(newRecord(ev))
}

func newRecord(ev event) jsonRecord {
	rec := jsonRecord{
		TS:     ev.ts.UTC().Format(time.RFC3339Nano),
		Header: fmt.Sprintf("0x%02x", ev.header),
	}
	if ev.invalid {
		rec.Type = "invalid"
		return rec
	}
	rec.Type = ev.frame.Type.String()
	if tr, ok := ev.frame.Payload(); ok {
		rec.X, rec.Y, rec.Z = &tr.X, &tr.Y, &tr.Z
	}
	return rec
}
