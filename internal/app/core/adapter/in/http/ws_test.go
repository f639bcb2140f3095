package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/THEAllStarsolver/ReWear/pkg/pubsub"
)

func dialSubscribe(t *testing.T, e *testEnv, query string) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/subscribe" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// 等 handler 完成訂閱再發事件
	require.Eventually(t, func() bool {
		return e.hub.Count() > 0
	}, time.Second, 5*time.Millisecond)
	return conn, srv
}

func TestSubscribeReceivesEvents(t *testing.T) {
	e := setup(t)
	conn, _ := dialSubscribe(t, e, "")

	e.hub.Publish(pubsub.Event{Kind: pubsub.KindListing, ID: "l1", Status: "available"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt pubsub.Event
	require.NoError(t, conn.ReadJSON(&evt))
	require.Equal(t, pubsub.KindListing, evt.Kind)
	require.Equal(t, "l1", evt.ID)
	require.Equal(t, "available", evt.Status)
}

func TestSubscribeFilter(t *testing.T) {
	e := setup(t)
	conn, _ := dialSubscribe(t, e, "?kind=listing&status=redeemed")

	// 不符合 filter 的事件不會被推送
	e.hub.Publish(pubsub.Event{Kind: pubsub.KindAccount, ID: "u1"})
	e.hub.Publish(pubsub.Event{Kind: pubsub.KindListing, ID: "l1", Status: "available"})
	e.hub.Publish(pubsub.Event{Kind: pubsub.KindListing, ID: "l2", Status: "redeemed"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt pubsub.Event
	require.NoError(t, conn.ReadJSON(&evt))
	require.Equal(t, "l2", evt.ID)
}

func TestSubscribeReleasedOnDisconnect(t *testing.T) {
	e := setup(t)
	conn, _ := dialSubscribe(t, e, "")
	require.Equal(t, 1, e.hub.Count())

	// 客戶端斷線後，訂閱句柄必須被釋放
	conn.Close()
	require.Eventually(t, func() bool {
		return e.hub.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
