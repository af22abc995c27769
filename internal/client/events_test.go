package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvents(t *testing.T) {
	stream := ": connected\n\n" +
		"event: SHAME_UPDATE\ndata: {\"host\":\"x.com\",\"time\":3}\n\n" +
		"event: NOTIFICATION\ndata: {\"kind\":\"warning\"}\n\n"

	var got []Event
	err := readEvents(strings.NewReader(stream), func(e Event) error {
		got = append(got, e)
		return nil
	})
	assert.ErrorIs(t, err, ErrStreamClosed)
	require.Len(t, got, 2)
	assert.Equal(t, "SHAME_UPDATE", got[0].Type)

	var payload struct {
		Host string `json:"host"`
		Time int64  `json:"time"`
	}
	require.NoError(t, got[0].Decode(&payload))
	assert.Equal(t, "x.com", payload.Host)
	assert.Equal(t, int64(3), payload.Time)
	assert.Equal(t, "NOTIFICATION", got[1].Type)
}

func TestReadEvents_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	stream := "event: A\ndata: {}\n\nevent: B\ndata: {}\n\n"

	calls := 0
	err := readEvents(strings.NewReader(stream), func(Event) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestEvents_FromServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, ": connected\n\nevent: RULES_UPDATE\ndata: {\"rules\":[]}\n\n")
	})
	c := newTestClient(t, mux)

	var types []string
	err := c.Events(context.Background(), func(e Event) error {
		types = append(types, e.Type)
		return nil
	})
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.Equal(t, []string{"RULES_UPDATE"}, types)
}

func TestEvents_Unavailable(t *testing.T) {
	c := New("http://127.0.0.1:1")
	err := c.Events(context.Background(), func(Event) error { return nil })
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}
