package main

import (
	"context"
	"time"

	"github.com/ashajkofci/attlink"
)

// event is one terminal decoder outcome as seen by the monitor.
type event struct {
	ts      time.Time
	frame   attlink.Frame
	invalid bool
	header  byte
}

func frameEvent(f attlink.Frame) event {
	return event{ts: time.Now(), frame: f, header: byte(f.Type)}
}

func errorEvent(out attlink.Outcome) event {
	return event{ts: time.Now(), invalid: true, header: out.Header}
}

func publish(ctx context.Context, ch chan<- event, ev event) {
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
