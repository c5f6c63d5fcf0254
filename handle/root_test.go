package handle_test

import (
	"sync"
	"testing"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/handle"
	"github.com/wippyai/script-bridge/simengine"
)

func TestRoot_ValueAndInto(t *testing.T) {
	eng := simengine.New()
	defer eng.Shutdown()

	var (
		got any
		err error
	)
	eng.RunSync(func(env scriptbridge.Env) {
		r := handle.New(env, "payload")

		got, err = r.Value(env)
		if err == nil && got == "payload" {
			got, err = r.Into(env)
		}
	})
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if got != "payload" {
		t.Errorf("Into = %v, want payload", got)
	}
	if n := eng.LiveRefs(); n != 0 {
		t.Errorf("LiveRefs = %d after Into, want 0", n)
	}
}

func TestRoot_CloneSharesOneReference(t *testing.T) {
	eng := simengine.New()
	defer eng.Shutdown()

	eng.RunSync(func(env scriptbridge.Env) {
		r := handle.New(env, 42)
		c1 := r.Clone()
		c2 := c1.Clone()

		if eng.LiveRefs() != 1 {
			t.Errorf("LiveRefs = %d with three clones, want 1", eng.LiveRefs())
		}

		if err := r.Unroot(env); err != nil {
			t.Errorf("Unroot r: %v", err)
		}
		if err := c1.Unroot(env); err != nil {
			t.Errorf("Unroot c1: %v", err)
		}
		if eng.LiveRefs() != 1 {
			t.Errorf("LiveRefs = %d with one clone left, want 1", eng.LiveRefs())
		}

		v, err := c2.Into(env)
		if err != nil {
			t.Errorf("Into c2: %v", err)
		}
		if v != 42 {
			t.Errorf("Into = %v, want 42", v)
		}
	})

	if n := eng.LiveRefs(); n != 0 {
		t.Errorf("LiveRefs = %d after last clone consumed, want 0", n)
	}
}

func TestRoot_ReleaseOffThread(t *testing.T) {
	eng := simengine.New()
	defer eng.Shutdown()

	var r *handle.Root
	eng.RunSync(func(env scriptbridge.Env) {
		r = handle.New(env, "bg")
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Release()
	}()
	wg.Wait()

	// flush the drop-queue drain posted by Release
	eng.RunSync(func(scriptbridge.Env) {})

	if n := eng.LiveRefs(); n != 0 {
		t.Errorf("LiveRefs = %d after off-thread Release, want 0", n)
	}
	if n := eng.OffThreadCalls(); n != 0 {
		t.Errorf("OffThreadCalls = %d, want 0", n)
	}
}

func TestRoot_ManyWorkersManyRoots(t *testing.T) {
	eng := simengine.New()
	defer eng.Shutdown()

	const workers = 8
	const perWorker = 50

	roots := make([]*handle.Root, workers*perWorker)
	eng.RunSync(func(env scriptbridge.Env) {
		for i := range roots {
			roots[i] = handle.New(env, i)
		}
	})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				r := roots[w*perWorker+i]
				c := r.Clone()
				c.Release()
				r.Release()
			}
		}(w)
	}
	wg.Wait()

	eng.RunSync(func(scriptbridge.Env) {})

	if n := eng.OffThreadCalls(); n != 0 {
		t.Errorf("OffThreadCalls = %d, want 0", n)
	}
	if n := eng.LiveRefs(); n != 0 {
		t.Errorf("LiveRefs = %d, want 0", n)
	}
}

func TestRoot_WrongInstance(t *testing.T) {
	eng1 := simengine.New()
	defer eng1.Shutdown()
	eng2 := simengine.New()
	defer eng2.Shutdown()

	var r *handle.Root
	eng1.RunSync(func(env scriptbridge.Env) {
		r = handle.New(env, "owned by 1")
	})

	var err error
	eng2.RunSync(func(env scriptbridge.Env) {
		_, err = r.Value(env)
	})
	if !errors.IsKind(err, errors.KindWrongInstance) {
		t.Fatalf("Value under foreign instance = %v, want wrong_instance", err)
	}

	e := err.(*errors.Error)
	if e.Created == e.Current {
		t.Errorf("created and current instance ids both %d, want distinct", e.Created)
	}

	// a failed cross-instance read must not consume the root
	eng1.RunSync(func(env scriptbridge.Env) {
		v, err := r.Into(env)
		if err != nil {
			t.Errorf("Into under owning instance: %v", err)
		}
		if v != "owned by 1" {
			t.Errorf("Into = %v, want owned by 1", v)
		}
	})
}

func TestRoot_DoubleConsumePanics(t *testing.T) {
	eng := simengine.New()
	defer eng.Shutdown()

	var r *handle.Root
	eng.RunSync(func(env scriptbridge.Env) {
		r = handle.New(env, "x")
	})
	r.Release()

	defer func() {
		if recover() == nil {
			t.Fatal("second Release did not panic")
		}
	}()
	r.Release()
}

func TestRoot_UseAfterConsumePanics(t *testing.T) {
	eng := simengine.New()
	defer eng.Shutdown()

	var r *handle.Root
	eng.RunSync(func(env scriptbridge.Env) {
		r = handle.New(env, "x")
	})
	r.Release()

	defer func() {
		if recover() == nil {
			t.Fatal("Clone after Release did not panic")
		}
	}()
	r.Clone()
}

func TestRoot_ReleaseAfterShutdownDiscards(t *testing.T) {
	eng := simengine.New()

	var r *handle.Root
	eng.RunSync(func(env scriptbridge.Env) {
		r = handle.New(env, "late")
	})

	eng.Shutdown()

	// must not hang, panic, or touch the dead engine
	r.Release()

	if n := eng.LiveRefs(); n != 0 {
		t.Errorf("LiveRefs = %d after teardown, want 0", n)
	}
}
