package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"matchroom_server/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPushBaseDelay   = time.Second
	DefaultMaxPushRetries  = 3
	DefaultMaxPollFailures = 5
	eventBuffer            = 16
)

// Subscriber streams match events for a topic. Subscribe blocks, calling
// handle for each event, and returns nil once ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handle func(models.MatchEvent)) error
}

// PollFunc fetches the current matches for the watched subject.
type PollFunc func(ctx context.Context) ([]models.MatchEvent, error)

type Options struct {
	Topic           string
	Subscriber      Subscriber // optional
	Poll            PollFunc   // optional
	Interval        time.Duration
	PushBaseDelay   time.Duration
	MaxPushRetries  uint64
	MaxPollFailures int
}

// Reconciler merges a push stream and a polling loop into one event stream
// in which each match id appears exactly once.
type Reconciler struct {
	opts   Options
	events chan models.MatchEvent

	mu      sync.Mutex
	seen    map[string]struct{}
	cancel  context.CancelFunc
	stopped bool

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func New(opts Options) *Reconciler {
	if opts.PushBaseDelay <= 0 {
		opts.PushBaseDelay = DefaultPushBaseDelay
	}
	if opts.MaxPushRetries == 0 {
		opts.MaxPushRetries = DefaultMaxPushRetries
	}
	if opts.MaxPollFailures <= 0 {
		opts.MaxPollFailures = DefaultMaxPollFailures
	}
	return &Reconciler{
		opts:   opts,
		events: make(chan models.MatchEvent, eventBuffer),
		seen:   make(map[string]struct{}),
	}
}

// Events is closed after Stop returns.
func (r *Reconciler) Events() <-chan models.MatchEvent { return r.events }

// Start launches the producers. Calls after the first, or after Stop, do nothing.
func (r *Reconciler) Start(parent context.Context) {
	r.startOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.stopped {
			return
		}
		ctx, cancel := context.WithCancel(parent)
		r.cancel = cancel
		if r.opts.Subscriber != nil {
			r.wg.Add(1)
			go r.listen(ctx)
		}
		if r.opts.Poll != nil && r.opts.Interval > 0 {
			r.wg.Add(1)
			go r.pollLoop(ctx)
		}
	})
}

// Stop cancels both producers, waits for them and closes Events. Safe to call repeatedly.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		cancel := r.cancel
		r.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		r.wg.Wait()
		close(r.events)
	})
}

// offer emits event unless its match id was already emitted.
func (r *Reconciler) offer(ctx context.Context, event models.MatchEvent) bool {
	r.mu.Lock()
	if _, dup := r.seen[event.MatchID]; dup {
		r.mu.Unlock()
		return false
	}
	r.seen[event.MatchID] = struct{}{}
	r.mu.Unlock()

	select {
	case r.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// listen retries a failed subscription with exponential backoff and gives up
// after MaxPushRetries, leaving polling to catch up. A delivered event resets the retries.
func (r *Reconciler) listen(ctx context.Context) {
	defer r.wg.Done()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.opts.PushBaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = r.opts.PushBaseDelay << r.opts.MaxPushRetries
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, r.opts.MaxPushRetries), ctx)

	op := func() error {
		err := r.opts.Subscriber.Subscribe(ctx, r.opts.Topic, func(event models.MatchEvent) {
			r.offer(ctx, event)
			policy.Reset()
		})
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errors.New("push stream ended")
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Debug().Err(err).Str("topic", r.opts.Topic).Dur("retryIn", wait).Msg("push subscription failed")
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Str("topic", r.opts.Topic).Msg("⚠️ push listener gave up, relying on polling")
	}
}

// pollLoop polls immediately and then every Interval, doubling the wait per
// consecutive failure and stopping after MaxPollFailures of them.
func (r *Reconciler) pollLoop(ctx context.Context) {
	defer r.wg.Done()

	failures := 0
	for {
		events, err := r.opts.Poll(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			log.Debug().Err(err).Str("topic", r.opts.Topic).Int("failures", failures).Msg("poll failed")
			if failures >= r.opts.MaxPollFailures {
				log.Warn().Err(err).Str("topic", r.opts.Topic).Msg("⚠️ poller gave up")
				return
			}
		} else {
			failures = 0
			for _, e := range events {
				r.offer(ctx, e)
			}
		}

		timer := time.NewTimer(r.opts.Interval << failures)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
