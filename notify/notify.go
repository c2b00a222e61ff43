package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Notification types emitted by the dues engine.
const (
	TypePaymentReported      = "manual_payment_reported"
	TypePaymentConfirmed     = "manual_payment_confirmed"
	TypePaymentDisputed      = "manual_payment_disputed"
	TypePaymentResolved      = "manual_payment_resolved"
	TypePaymentAutoConfirmed = "manual_payment_auto_confirmed"
)

const (
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
)

type Notification struct {
	ID        string            `json:"id"`
	UserID    uint              `json:"user_id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	TargetURL string            `json:"target_url,omitempty"`
	Priority  string            `json:"priority"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Sink delivers a single notification. Delivery is best-effort: a failing
// sink is logged and never surfaces to the emitter.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogSink writes notifications to the process log. The default until a real
// delivery collaborator is wired in.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, n Notification) error {
	log.Printf("notify: user=%d type=%s title=%q", n.UserID, n.Type, n.Title)
	return nil
}

// Dispatcher decouples state transitions from notification delivery: Emit
// never blocks and never fails, a background goroutine drains the queue.
type Dispatcher struct {
	sink  Sink
	queue chan Notification
	done  chan struct{}
}

func NewDispatcher(sink Sink) *Dispatcher {
	return &Dispatcher{
		sink:  sink,
		queue: make(chan Notification, 256),
		done:  make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	go func() {
		defer close(d.done)
		for n := range d.queue {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := d.sink.Deliver(ctx, n); err != nil {
				log.Printf("notify: delivery failed for %s (%s to user %d): %v", n.ID, n.Type, n.UserID, err)
			}
			cancel()
		}
	}()
}

// Emit enqueues a notification, dropping it if the queue is full. Callers
// must never depend on delivery.
func (d *Dispatcher) Emit(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	select {
	case d.queue <- n:
	default:
		log.Printf("notify: queue full, dropping %s notification for user %d", n.Type, n.UserID)
	}
}

// Stop drains the queue and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	close(d.queue)
	<-d.done
}

var dispatcher = NewDispatcher(LogSink{})

// SetDispatcher swaps the process-wide dispatcher. Tests install a recording
// sink through this.
func SetDispatcher(d *Dispatcher) {
	dispatcher = d
}

// Emit sends through the process-wide dispatcher.
func Emit(n Notification) {
	dispatcher.Emit(n)
}
