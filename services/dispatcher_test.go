package services

import (
	"context"
	"testing"
	"time"

	"github.com/nativatech/agendo-notifier/channels"
	"github.com/stretchr/testify/assert"
)

// stubChannel returns a canned result, optionally disabled or panicking.
type stubChannel struct {
	name    string
	enabled bool
	result  channels.Result
	panics  bool
	delay   time.Duration
}

func (s *stubChannel) Name() string  { return s.name }
func (s *stubChannel) Enabled() bool { return s.enabled }

func (s *stubChannel) Send(ctx context.Context, userIDs []uint, _ channels.Message) channels.Result {
	if s.panics {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return channels.Result{Total: len(userIDs)}
		}
	}
	return s.result
}

func TestDispatchPartialFailure(t *testing.T) {
	healthy := &stubChannel{name: "inapp", enabled: true, result: channels.Result{OK: 3, Total: 3}}
	degraded := &stubChannel{name: "webpush", enabled: true, result: channels.Result{OK: 1, Total: 3}}

	d := NewDispatcher(healthy, degraded)
	report := d.Dispatch(context.Background(), []uint{1, 2, 3}, channels.Message{Type: "test"})

	assert.Equal(t, channels.Result{OK: 3, Total: 3}, report.Channels["inapp"])
	assert.Equal(t, channels.Result{OK: 1, Total: 3}, report.Channels["webpush"])
	assert.Equal(t, 4, report.OK())
	assert.Equal(t, 6, report.Total())
	assert.Empty(t, report.Skipped)
}

func TestDispatchSkipsDisabledChannels(t *testing.T) {
	enabled := &stubChannel{name: "inapp", enabled: true, result: channels.Result{OK: 1, Total: 1}}
	disabled := &stubChannel{name: "email", enabled: false}

	d := NewDispatcher(enabled, disabled)
	report := d.Dispatch(context.Background(), []uint{1}, channels.Message{Type: "test"})

	assert.Equal(t, []string{"email"}, report.Skipped)
	_, ran := report.Channels["email"]
	assert.False(t, ran)
	assert.Equal(t, 1, report.OK())
}

func TestDispatchSurvivesChannelPanic(t *testing.T) {
	stable := &stubChannel{name: "inapp", enabled: true, result: channels.Result{OK: 2, Total: 2}}
	broken := &stubChannel{name: "onesignal", enabled: true, panics: true}

	d := NewDispatcher(stable, broken)
	report := d.Dispatch(context.Background(), []uint{1, 2}, channels.Message{Type: "test"})

	// The panicking channel reports zero deliveries; its sibling is untouched.
	assert.Equal(t, channels.Result{OK: 0, Total: 2}, report.Channels["onesignal"])
	assert.Equal(t, channels.Result{OK: 2, Total: 2}, report.Channels["inapp"])
}

func TestDispatchTimeoutDoesNotBlockSiblings(t *testing.T) {
	fast := &stubChannel{name: "inapp", enabled: true, result: channels.Result{OK: 1, Total: 1}}
	slow := &stubChannel{name: "webpush", enabled: true, delay: time.Second, result: channels.Result{OK: 1, Total: 1}}

	d := NewDispatcher(fast, slow)
	d.Timeout = 20 * time.Millisecond

	start := time.Now()
	report := d.Dispatch(context.Background(), []uint{1}, channels.Message{Type: "test"})

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, channels.Result{OK: 1, Total: 1}, report.Channels["inapp"])
	assert.Equal(t, channels.Result{OK: 0, Total: 1}, report.Channels["webpush"])
}

func TestDispatchNoChannels(t *testing.T) {
	d := NewDispatcher()
	report := d.Dispatch(context.Background(), []uint{1}, channels.Message{Type: "test"})

	assert.Equal(t, 0, report.OK())
	assert.Equal(t, 0, report.Total())
}
