package wasmhost_test

import (
	"context"
	"testing"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/dispatch"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/handle"
	"github.com/wippyai/script-bridge/wasmhost"
)

// testModule is a hand-assembled core wasm module exporting
//
//	(func (export "add") (param i32 i32) (result i32))
//	(func (export "boom") unreachable)
var testModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic + version

	0x01, 0x0a, 0x02, // type section, 2 entries
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // (i32, i32) -> i32
	0x60, 0x00, 0x00, // () -> ()

	0x03, 0x03, 0x02, 0x00, 0x01, // function section

	0x07, 0x0e, 0x02, // export section, 2 entries
	0x03, 'a', 'd', 'd', 0x00, 0x00,
	0x04, 'b', 'o', 'o', 'm', 0x00, 0x01,

	0x0a, 0x0d, 0x02, // code section, 2 bodies
	0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b, // local.get 0; local.get 1; i32.add
	0x03, 0x00, 0x00, 0x0b, // unreachable
}

func newHost(t *testing.T) *wasmhost.Host {
	t.Helper()
	h, err := wasmhost.New(context.Background(), testModule, wasmhost.Config{Name: "test"})
	if err != nil {
		t.Fatalf("create host: %v", err)
	}
	return h
}

func TestCall_ExportedFunction(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)
	defer h.Shutdown(ctx)

	var (
		out []uint64
		err error
	)
	h.RunSync(func(env scriptbridge.Env) {
		out, err = h.Call(ctx, env, "add", 5, 37)
	})
	if err != nil {
		t.Fatalf("call add: %v", err)
	}
	if len(out) != 1 || out[0] != 42 {
		t.Errorf("add(5, 37) = %v, want [42]", out)
	}
}

func TestCall_UnknownExport(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)
	defer h.Shutdown(ctx)

	var err error
	h.RunSync(func(env scriptbridge.Env) {
		_, err = h.Call(ctx, env, "missing")
	})
	if !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("err = %v, want kind invalid_input", err)
	}
}

func TestCall_GuestTrapIsException(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)
	defer h.Shutdown(ctx)

	var err error
	h.RunSync(func(env scriptbridge.Env) {
		_, err = h.Call(ctx, env, "boom")
	})
	if !errors.IsKind(err, errors.KindException) {
		t.Fatalf("err = %v, want kind exception", err)
	}
	if err.(*errors.Error).Cause == nil {
		t.Error("trap error has no cause")
	}
}

func TestDispatch_GuestCallFromWorker(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)
	defer h.Shutdown(ctx)

	var (
		ch    *dispatch.Channel
		chErr error
	)
	h.RunSync(func(env scriptbridge.Env) {
		ch, chErr = dispatch.New(env)
	})
	if chErr != nil {
		t.Fatalf("create channel: %v", chErr)
	}

	got, err := ch.Send(func(cx *dispatch.Context) (any, error) {
		out, err := h.Call(ctx, cx.Env(), "add", 40, 2)
		if err != nil {
			return nil, err
		}
		return out[0], nil
	}).Join()
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got != uint64(42) {
		t.Errorf("Join = %v, want 42", got)
	}
}

func TestDispatch_GuestTrapReachesJoinHandle(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)
	defer h.Shutdown(ctx)

	var ch *dispatch.Channel
	h.RunSync(func(env scriptbridge.Env) {
		ch, _ = dispatch.New(env)
	})

	_, err := ch.Send(func(cx *dispatch.Context) (any, error) {
		_, err := h.Call(ctx, cx.Env(), "boom")
		return nil, err
	}).Join()

	if !errors.IsKind(err, errors.KindException) {
		t.Fatalf("err = %v, want kind exception", err)
	}
}

func TestRoot_LifecycleOnHost(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)
	defer h.Shutdown(ctx)

	var r *handle.Root
	h.RunSync(func(env scriptbridge.Env) {
		r = handle.New(env, "guest resource")
	})
	if h.LiveRefs() != 1 {
		t.Fatalf("LiveRefs = %d, want 1", h.LiveRefs())
	}

	released := make(chan struct{})
	go func() {
		defer close(released)
		r.Release()
	}()
	<-released

	h.RunSync(func(scriptbridge.Env) {})

	if n := h.LiveRefs(); n != 0 {
		t.Errorf("LiveRefs = %d after off-thread Release, want 0", n)
	}
}

func TestShutdown_SendsRejectAfterwards(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)

	var ch *dispatch.Channel
	h.RunSync(func(env scriptbridge.Env) {
		ch, _ = dispatch.New(env)
	})

	h.Shutdown(ctx)
	h.Shutdown(ctx) // idempotent

	_, err := ch.Send(func(cx *dispatch.Context) (any, error) {
		return nil, nil
	}).Join()
	if !errors.IsKind(err, errors.KindChannelClosed) {
		t.Fatalf("err = %v, want kind channel_closed", err)
	}
}
