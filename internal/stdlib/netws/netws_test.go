package netws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/object"
	"ember/internal/oid"
	"ember/internal/vm"
)

func callMethod(t object.Thread, recv oid.ObjectId, name string, args ...oid.ObjectId) (oid.ObjectId, error) {
	fnID, ok := object.GetAttr(t, recv, name)
	if !ok {
		panic("no method " + name)
	}
	callArgs := append([]oid.ObjectId{recv}, args...)
	return t.Call(fnID, callArgs)
}

// echoServer is a minimal accept-and-broadcast-one pairing collapsed
// into a single handler: upgrade, read one message, echo it back.
func echoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, msg)
	}))
}

func TestWebSocketClientSendRecvRoundTrip(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	v := vm.New()
	mod := Register(v)
	th := v.MainThread(nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	urlID := v.Heap().Alloc(&object.String{Value: url})

	ctor := mod.Exports["WebSocketClient"]
	connID, err := th.Call(ctor, []oid.ObjectId{urlID})
	require.NoError(t, err)

	msgID := v.Heap().Alloc(&object.String{Value: "hello over the wire"})
	_, err = callMethod(th, connID, "send", msgID)
	require.NoError(t, err)

	replyID, err := callMethod(th, connID, "recv")
	require.NoError(t, err)
	reply, ok := v.Heap().Get(replyID).(*object.String)
	require.True(t, ok)
	assert.Equal(t, "hello over the wire", reply.Value)

	_, err = callMethod(th, connID, "close")
	assert.NoError(t, err)
}

func TestWebSocketClientDialFailure(t *testing.T) {
	v := vm.New()
	mod := Register(v)
	th := v.MainThread(nil)

	urlID := v.Heap().Alloc(&object.String{Value: "ws://127.0.0.1:1/no-such-server"})
	ctor := mod.Exports["WebSocketClient"]
	_, err := th.Call(ctor, []oid.ObjectId{urlID})
	assert.Error(t, err)
}
