package observer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, ScanEvent) { panic("boom") }
func (panickingObserver) Name() string                       { return "panicking" }

func TestMetricsObserver_Snapshot(t *testing.T) {
	m := NewMetricsObserver()
	p := NewEventPublisher(panickingObserver{}, m)
	ctx := context.Background()

	p.Notify(ctx, ScanEvent{EventType: ScanStarted, ScanID: "a"})
	p.Notify(ctx, ScanEvent{EventType: StageDegraded, ScanID: "a", Stage: "cropping"})
	p.Notify(ctx, ScanEvent{EventType: ScanFinished, ScanID: "a", Outcome: "matched", Elapsed: 40 * time.Millisecond})
	p.Notify(ctx, ScanEvent{EventType: ScanStarted, ScanID: "b"})
	p.Notify(ctx, ScanEvent{EventType: ScanFinished, ScanID: "b", Outcome: "failed", Elapsed: 20 * time.Millisecond})

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap["scans_started"])
	assert.EqualValues(t, 2, snap["scans_finished"])
	assert.Equal(t, map[string]int64{"matched": 1, "failed": 1}, snap["outcomes"])
	assert.Equal(t, map[string]int64{"cropping": 1}, snap["stage_degradations"])
	assert.EqualValues(t, 30, snap["avg_duration_ms"])
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	m := NewMetricsObserver()
	p := NewEventPublisher(m)
	p.Unsubscribe(m)

	p.Notify(context.Background(), ScanEvent{EventType: ScanStarted})
	assert.EqualValues(t, 0, m.Snapshot()["scans_started"])
}

func TestEventPublisher_NilIsNoop(t *testing.T) {
	var p *EventPublisher
	assert.NotPanics(t, func() {
		p.Notify(context.Background(), ScanEvent{EventType: ScanStarted})
	})
}

func TestLoggingObserver_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)

	o := NewLoggingObserver(l)
	o.OnEvent(context.Background(), ScanEvent{EventType: StageEntered, ScanID: "x", Stage: "cropping"})
	require.Empty(t, buf.String(), "stage transitions are debug level")

	o.OnEvent(context.Background(), ScanEvent{EventType: StageDegraded, ScanID: "x", Stage: "enhancing", Error: "image has no pixels"})
	assert.Contains(t, buf.String(), `"level":"warning"`)
	assert.Contains(t, buf.String(), `"stage":"enhancing"`)

	buf.Reset()
	o.OnEvent(context.Background(), ScanEvent{EventType: ScanFinished, ScanID: "x", Outcome: "not_matched"})
	assert.Contains(t, buf.String(), `"outcome":"not_matched"`)
	assert.Contains(t, buf.String(), "Scan finished")
}
