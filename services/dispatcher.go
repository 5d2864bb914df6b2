package services

import (
	"context"
	"sync"
	"time"

	"github.com/nativatech/agendo-notifier/channels"
	"github.com/nativatech/agendo-notifier/utils"
)

// DispatchReport aggregates per-channel outcomes of one fan-out.
type DispatchReport struct {
	Channels map[string]channels.Result `json:"channels"`
	Skipped  []string                   `json:"skipped,omitempty"`
}

// OK sums successful deliveries across channels.
func (r DispatchReport) OK() int {
	total := 0
	for _, res := range r.Channels {
		total += res.OK
	}
	return total
}

// Total sums attempted deliveries across channels.
func (r DispatchReport) Total() int {
	total := 0
	for _, res := range r.Channels {
		total += res.Total
	}
	return total
}

// Dispatcher fans one message out across all channels with a
// scatter/gather: every channel runs in its own goroutine under its
// own timeout, every outcome is awaited, and no failure, panic or
// hang in one channel ever blocks or aborts a sibling.
type Dispatcher struct {
	Channels []channels.Channel
	Timeout  time.Duration
}

func NewDispatcher(chs ...channels.Channel) *Dispatcher {
	return &Dispatcher{
		Channels: chs,
		Timeout:  30 * time.Second,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, userIDs []uint, msg channels.Message) DispatchReport {
	report := DispatchReport{
		Channels: make(map[string]channels.Result, len(d.Channels)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, ch := range d.Channels {
		if !ch.Enabled() {
			report.Skipped = append(report.Skipped, ch.Name())
			continue
		}

		wg.Add(1)
		go func(ch channels.Channel) {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, d.Timeout)
			defer cancel()

			res := d.sendSafely(sendCtx, ch, userIDs, msg)

			mu.Lock()
			report.Channels[ch.Name()] = res
			mu.Unlock()
		}(ch)
	}

	wg.Wait()
	return report
}

// sendSafely converts a channel panic into a zero result so the
// report still carries the channel's name.
func (d *Dispatcher) sendSafely(ctx context.Context, ch channels.Channel, userIDs []uint, msg channels.Message) (res channels.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			utils.ErrorLogger.Printf("dispatcher: channel %s panicked: %v", ch.Name(), rec)
			res = channels.Result{Total: len(userIDs)}
		}
	}()
	return ch.Send(ctx, userIDs, msg)
}
