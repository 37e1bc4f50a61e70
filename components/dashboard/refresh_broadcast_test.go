package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastHookSubscribe(t *testing.T) {
	hook := NewBroadcastHook()
	ch, cancel := hook.Subscribe()
	defer cancel()
	event := EntityEvent{Entity: EntitySuppliers, RowID: "s1", Reason: ReasonRowCreated}
	if err := hook.EntityUpdated(context.Background(), event); err != nil {
		t.Fatalf("EntityUpdated returned error: %v", err)
	}
	select {
	case e := <-ch:
		if e.RowID != event.RowID {
			t.Fatalf("expected row %s, got %s", event.RowID, e.RowID)
		}
	default:
		t.Fatalf("expected event to be delivered")
	}
}

func TestBroadcastHookEntityFilter(t *testing.T) {
	hook := NewBroadcastHook()
	ch, cancel := hook.SubscribeEntity(EntityCustomerOrders)
	defer cancel()

	_ = hook.EntityUpdated(context.Background(), EntityEvent{Entity: EntitySuppliers})
	_ = hook.EntityUpdated(context.Background(), EntityEvent{Entity: EntityCustomerOrders, RowID: "o1"})

	select {
	case e := <-ch:
		assert.Equal(t, "o1", e.RowID)
	default:
		t.Fatalf("expected customer order event")
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestBroadcastHookCancelClosesChannel(t *testing.T) {
	hook := NewBroadcastHook()
	ch, cancel := hook.Subscribe()
	assert.Equal(t, 1, hook.Subscribers())
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hook.Subscribers())
}

func TestBroadcastHookServeWebSocket(t *testing.T) {
	hook := NewBroadcastHook()
	srv := httptest.NewServer(http.HandlerFunc(hook.ServeWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?entity=" + EntityDailyWork
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hook.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hook.EntityUpdated(context.Background(), EntityEvent{Entity: EntityDailyWork, RowID: "d1", Reason: ReasonRowUpdated}))

	var got EntityEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "d1", got.RowID)
	assert.Equal(t, ReasonRowUpdated, got.Reason)
}
