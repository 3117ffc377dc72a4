package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/poolparty/internal/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

const DefaultTimeout = 10 * time.Second

// maxErrorLen bounds the error text kept per result; results are persisted
// in notification logs.
const maxErrorLen = 500

var (
	ErrNoSender  = errors.New("no sender configured for channel")
	ErrNoAddress = errors.New("target has no address")
	ErrTimeout   = errors.New("delivery timed out")
)

var deliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notify_deliveries_total",
		Help: "Notification deliveries by channel and outcome.",
	},
	[]string{"channel", "outcome"},
)

// Target is one destination: an email address or a WhatsApp group id.
// GroupID is set when the target is a community group.
type Target struct {
	Channel Channel    `json:"channel"`
	Address string     `json:"address"`
	Name    string     `json:"name,omitempty"`
	GroupID *uuid.UUID `json:"group_id,omitempty"`
}

type Message struct {
	Subject  string
	Text     string
	HTML     string
	Link     string
	ImageURL string
}

// Result is the outcome for one target. Failures are data, not errors.
type Result struct {
	Target  Target `json:"target"`
	Success bool   `json:"success"`
	Queued  bool   `json:"queued,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Sender delivers a message over one channel.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, target Target, msg Message) error
}

// Notifier fans a message out to many targets in parallel.
type Notifier struct {
	senders map[Channel]Sender
	timeout time.Duration
	logger  *slog.Logger
}

func New(logger *slog.Logger, timeout time.Duration, senders ...Sender) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	n := &Notifier{
		senders: make(map[Channel]Sender, len(senders)),
		timeout: timeout,
		logger:  logger,
	}
	for _, s := range senders {
		n.senders[s.Channel()] = s
	}
	return n
}

// Notify sends msg to every target and returns one Result per target in
// the same order. It never fails as a whole: errors, timeouts and panics
// of individual deliveries are reported in their Result.
func (n *Notifier) Notify(ctx context.Context, targets []Target, msg Message) []Result {
	results := make([]Result, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = n.deliver(ctx, target, msg)
		}()
	}
	wg.Wait()

	return results
}

func (n *Notifier) deliver(ctx context.Context, target Target, msg Message) Result {
	res := Result{Target: target}

	err := n.send(ctx, target, msg)
	if err == nil {
		res.Success = true
		deliveriesTotal.WithLabelValues(string(target.Channel), "success").Inc()
		return res
	}

	res.Error = validation.TruncateString(err.Error(), maxErrorLen)
	deliveriesTotal.WithLabelValues(string(target.Channel), "failure").Inc()
	n.logger.Warn("notification delivery failed",
		"channel", target.Channel,
		"target", target.Name,
		"address", target.Address,
		"error", err,
	)
	return res
}

func (n *Notifier) send(ctx context.Context, target Target, msg Message) error {
	sender, ok := n.senders[target.Channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSender, target.Channel)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("sender panic: %v", r)
			}
		}()
		done <- sender.Send(ctx, target, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

// Summary counts successes and failures.
func Summary(results []Result) (succeeded, failed int) {
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
