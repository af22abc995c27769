package notify

import (
	"context"
	"log/slog"

	"github.com/joescharf/shamescroll/internal/broadcast"
)

// Kind identifies a user-facing notification.
type Kind string

const (
	KindFocusStarted    Kind = "focus_started"
	KindMissionComplete Kind = "mission_complete"
	KindEndedEarly      Kind = "ended_early"
	KindWarning         Kind = "warning"
	KindDanger          Kind = "danger"
)

// Notification is a one-shot desktop-style notice.
type Notification struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier raises notifications. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// HubNotifier publishes notifications on the broadcast hub so the extension
// shim can surface them, and logs each one.
type HubNotifier struct {
	pub    broadcast.Publisher
	logger *slog.Logger
}

// NewHubNotifier creates a HubNotifier. A nil logger uses slog.Default.
func NewHubNotifier(pub broadcast.Publisher, logger *slog.Logger) *HubNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &HubNotifier{pub: pub, logger: logger}
}

func (n *HubNotifier) Notify(ctx context.Context, note Notification) {
	n.logger.InfoContext(ctx, "notification", "kind", note.Kind, "title", note.Title)
	n.pub.Publish(broadcast.Message{
		Type: broadcast.TypeNotification,
		Payload: map[string]any{
			"kind":    string(note.Kind),
			"title":   note.Title,
			"message": note.Message,
		},
	})
}

// Recorder keeps every notification in memory.
type Recorder struct {
	Sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.Sent = append(r.Sent, n)
}

// Kinds returns the kinds recorded so far, in order.
func (r *Recorder) Kinds() []Kind {
	out := make([]Kind, len(r.Sent))
	for i, n := range r.Sent {
		out[i] = n.Kind
	}
	return out
}
