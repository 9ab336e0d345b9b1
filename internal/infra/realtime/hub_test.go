package realtime

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postop_followup/internal/domain/notification"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestDeliverOnlyToOwningDoctor(t *testing.T) {
	hub := NewHub(quietLogger())
	a := NewClient("doc-a")
	b := NewClient("doc-b")
	hub.Register(a)
	hub.Register(b)

	hub.Deliver(notification.Payload{ID: "n1", DoctorID: "doc-a", Title: "Alerta"})

	require.Len(t, a.Send, 1)
	assert.Len(t, b.Send, 0)

	var got notification.Payload
	require.NoError(t, json.Unmarshal(<-a.Send, &got))
	assert.Equal(t, "n1", got.ID)
}

func TestDeliverDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(quietLogger())
	c := NewClient("doc")
	hub.Register(c)

	for i := 0; i < sendBuffer+5; i++ {
		hub.Deliver(notification.Payload{DoctorID: "doc"})
	}
	assert.Len(t, c.Send, sendBuffer)
}

func TestUnregisterTwice(t *testing.T) {
	hub := NewHub(quietLogger())
	c := NewClient("doc")
	hub.Register(c)
	assert.Equal(t, 1, hub.ClientCount("doc"))

	hub.Unregister(c)
	hub.Unregister(c)
	assert.Equal(t, 0, hub.ClientCount("doc"))

	_, open := <-c.Send
	assert.False(t, open)
}

func TestServeStreamsNotifications(t *testing.T) {
	hub := NewHub(quietLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, r.URL.Query().Get("doctor"))
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?doctor=doc-1"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return hub.ClientCount("doc-1") == 1 }, time.Second, 10*time.Millisecond)
	hub.Deliver(notification.Payload{ID: "n9", DoctorID: "doc-1"})

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"n9"`)

	ws.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount("doc-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
