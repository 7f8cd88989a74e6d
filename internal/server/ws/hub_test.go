package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedelta/backend/internal/cache/local"
	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/metrics"
)

const market = "0x00000000000000000000000000000000000000A1"

type frame struct {
	Type     string          `json:"type"`
	Channel  string          `json:"channel"`
	Channels []string        `json:"channels"`
	Comment  *domain.Comment `json:"comment"`
}

func startHub(t *testing.T) (*Hub, *local.Bus, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := local.NewBus()
	hub := NewHub(bus, slog.New(slog.NewJSONHandler(io.Discard, nil)), Config{Metrics: metrics.New()})
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, bus, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func publish(t *testing.T, bus *local.Bus, marketID, content string) {
	t.Helper()
	ev := domain.CommentEvent{
		Type:    "comment.created",
		Channel: domain.CommentChannel(strings.ToLower(marketID)),
		Comment: domain.Comment{ID: 1, MarketID: marketID, Content: content},
	}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev.Channel, payload))
}

func TestHub_SubscribeAndReceive(t *testing.T) {
	hub, bus, url := startHub(t)
	conn := dial(t, url)

	assert.Equal(t, "connected", read(t, conn).Type)
	assert.Equal(t, 1, hub.ClientCount())

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "subscribe", Channels: []string{market}}))
	ack := read(t, conn)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, []string{"comments:" + strings.ToLower(market)}, ack.Channels)

	// A different market is filtered out; ours arrives.
	publish(t, bus, "0x00000000000000000000000000000000000000b2", "elsewhere")
	publish(t, bus, market, "hello")

	got := read(t, conn)
	assert.Equal(t, "comment.created", got.Type)
	require.NotNil(t, got.Comment)
	assert.Equal(t, "hello", got.Comment.Content)
}

func TestHub_MarketQueryParam(t *testing.T) {
	_, bus, url := startHub(t)
	conn := dial(t, url+"?market="+market)
	assert.Equal(t, "connected", read(t, conn).Type)

	publish(t, bus, market, "direct")
	got := read(t, conn)
	require.NotNil(t, got.Comment)
	assert.Equal(t, "direct", got.Comment.Content)
}

func TestHub_Unsubscribe(t *testing.T) {
	_, _, url := startHub(t)
	conn := dial(t, url+"?market="+market)
	read(t, conn)

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "unsubscribe", Channels: []string{"comments:" + market}}))
	ack := read(t, conn)
	assert.Empty(t, ack.Channels)
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "comments:0xabc", channelName("0xABC"))
	assert.Equal(t, "comments:0xabc", channelName(" comments:0xAbc "))
}
