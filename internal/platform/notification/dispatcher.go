package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultMaxInFlight = 32

// Dispatcher sends templated email in the background. Delivery is best
// effort: failures are logged, never returned to the caller.
type Dispatcher struct {
	sender    EmailSender
	templates *TemplateEngine
	timeout   time.Duration
	logger    zerolog.Logger

	slots chan struct{}
	wg    sync.WaitGroup
}

func NewDispatcher(sender EmailSender, templates *TemplateEngine, timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:    sender,
		templates: templates,
		timeout:   timeout,
		logger:    logger.With().Str("component", "notification").Logger(),
		slots:     make(chan struct{}, defaultMaxInFlight),
	}
}

// SendAsync renders templateID and delivers it to "to" on a background
// goroutine bounded by the dispatcher timeout. It reports whether the
// message was queued; when too many sends are in flight it is dropped.
func (d *Dispatcher) SendAsync(to, templateID string, data map[string]string) bool {
	if to == "" {
		return false
	}
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		d.logger.Error().Err(err).Str("template", templateID).Msg("render notification")
		return false
	}

	select {
	case d.slots <- struct{}{}:
	default:
		d.logger.Warn().Str("template", templateID).Msg("notification dropped: too many in flight")
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.slots }()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().Interface("panic", r).Str("template", templateID).Msg("notification sender panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		start := time.Now()
		if err := d.sender.SendEmail(ctx, to, subject, body); err != nil {
			d.logger.Warn().Err(err).Str("template", templateID).Msg("notification failed")
			return
		}
		d.logger.Debug().
			Str("template", templateID).
			Dur("latency", time.Since(start)).
			Msg("notification sent")
	}()
	return true
}

// Wait blocks until queued sends finish or ctx ends. Used on shutdown.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports how many sends are in flight.
func (d *Dispatcher) Pending() int {
	return len(d.slots)
}
