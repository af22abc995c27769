package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joescharf/shamescroll/internal/broadcast"
)

func TestHubNotifier_Publishes(t *testing.T) {
	hub := broadcast.NewHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	n := NewHubNotifier(hub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.Notify(context.Background(), Notification{Kind: KindMissionComplete, Title: "Mission Complete!", Message: "done"})

	msg := <-ch
	assert.Equal(t, broadcast.TypeNotification, msg.Type)
	assert.Equal(t, "mission_complete", msg.Payload["kind"])
	assert.Equal(t, "Mission Complete!", msg.Payload["title"])
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Notify(context.Background(), Notification{Kind: KindWarning})
	r.Notify(context.Background(), Notification{Kind: KindDanger})
	assert.Equal(t, []Kind{KindWarning, KindDanger}, r.Kinds())
}
