// Package netws is a native stdlib module giving scripts a WebSocket
// client class (spec §6.3 extension registration): a WebSocketClient
// wrapping a *websocket.Conn with dial/send/recv/close dispatch — a
// script-embedded language has no listening socket of its own to
// manage, so this module covers the client half only.
package netws

import (
	"time"

	"github.com/gorilla/websocket"

	"ember/internal/object"
	"ember/internal/oid"
	"ember/internal/rt"
	"ember/internal/vm"
)

type handle struct {
	conn *websocket.Conn
}

func (h *handle) TypeName() string             { return "WebSocketClient" }
func (h *handle) GetReference() []oid.ObjectId { return nil }

const handleAttr = "__handle__"

// Register installs the "net" native module: a WebSocketClient class
// whose __new__ dials a URL, plus send/recv/close methods.
func Register(v *vm.VM) *object.Module {
	cls := object.NewClass("WebSocketClient")
	clsID := v.Heap().Alloc(cls)
	v.RegisterClassName("WebSocketClient", clsID)
	cls.SetAttr("send", v.NativeFunc("WebSocketClient.send", sendFn))
	cls.SetAttr("recv", v.NativeFunc("WebSocketClient.recv", recvFn))
	cls.SetAttr("close", v.NativeFunc("WebSocketClient.close", closeFn))

	return v.RegisterNativeModule("net", map[string]oid.ObjectId{
		"WebSocketClient": v.NativeFunc("WebSocketClient.__new__", newCtor(clsID)),
	})
}

func newCtor(classID oid.ObjectId) object.NativeFn {
	return func(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
		if len(args) < 1 {
			return oid.Invalid, rt.New(rt.KindValue, "WebSocketClient requires a URL argument")
		}
		u, ok := t.Get(args[0]).(*object.String)
		if !ok {
			return oid.Invalid, rt.New(rt.KindType, "WebSocketClient URL must be a string")
		}
		dialer := websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		conn, _, err := dialer.Dial(u.Value, nil)
		if err != nil {
			return oid.Invalid, rt.Wrap(rt.KindRuntime, "websocket dial failed", err)
		}
		inst := object.NewInstance(classID)
		instID := t.Alloc(inst)
		handleID := t.Alloc(&object.ExtensionObj{Payload: &handle{conn: conn}})
		inst.Attrs[handleAttr] = handleID
		t.WriteBarrier(instID, handleID)
		return instID, nil
	}
}

func wsHandle(t object.Thread, self oid.ObjectId) (*handle, error) {
	inst, ok := t.Get(self).(*object.Instance)
	if !ok {
		return nil, rt.New(rt.KindType, "not a WebSocketClient instance")
	}
	ext, ok := t.Get(inst.Attrs[handleAttr]).(*object.ExtensionObj)
	if !ok {
		return nil, rt.New(rt.KindType, "corrupt WebSocketClient handle")
	}
	h, ok := ext.Payload.(*handle)
	if !ok {
		return nil, rt.New(rt.KindType, "corrupt WebSocketClient handle")
	}
	return h, nil
}

func sendFn(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	h, err := wsHandle(t, args[0])
	if err != nil {
		return oid.Invalid, err
	}
	if len(args) < 2 {
		return oid.Invalid, rt.New(rt.KindValue, "send requires a message string")
	}
	msg, ok := t.Get(args[1]).(*object.String)
	if !ok {
		return oid.Invalid, rt.New(rt.KindType, "send message must be a string")
	}
	if werr := h.conn.WriteMessage(websocket.TextMessage, []byte(msg.Value)); werr != nil {
		return oid.Invalid, rt.Wrap(rt.KindRuntime, "websocket send failed", werr)
	}
	return args[0], nil
}

func recvFn(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	h, err := wsHandle(t, args[0])
	if err != nil {
		return oid.Invalid, err
	}
	_, data, rerr := h.conn.ReadMessage()
	if rerr != nil {
		return oid.Invalid, rt.Wrap(rt.KindRuntime, "websocket recv failed", rerr)
	}
	return t.Alloc(&object.String{Value: string(data)}), nil
}

func closeFn(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	h, err := wsHandle(t, args[0])
	if err != nil {
		return oid.Invalid, err
	}
	if cerr := h.conn.Close(); cerr != nil {
		return oid.Invalid, rt.Wrap(rt.KindRuntime, "websocket close failed", cerr)
	}
	return args[0], nil
}
