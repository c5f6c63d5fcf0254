package instance_test

import (
	"testing"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/instance"
	"github.com/wippyai/script-bridge/simengine"
)

func TestGet_StableWithinEnvironment(t *testing.T) {
	eng := simengine.New()
	defer eng.Shutdown()

	var first, second *instance.Data
	eng.RunSync(func(env scriptbridge.Env) {
		first = instance.Get(env)
		second = instance.Get(env)
	})

	if first != second {
		t.Error("Get returned different Data for the same environment")
	}
	if first.ID() == 0 {
		t.Error("instance id is zero")
	}
}

func TestGet_DistinctAcrossEnvironments(t *testing.T) {
	eng1 := simengine.New()
	defer eng1.Shutdown()
	eng2 := simengine.New()
	defer eng2.Shutdown()

	var id1, id2 instance.ID
	eng1.RunSync(func(env scriptbridge.Env) { id1 = instance.Get(env).ID() })
	eng2.RunSync(func(env scriptbridge.Env) { id2 = instance.Get(env).ID() })

	if id1 == id2 {
		t.Errorf("two environments share instance id %d", id1)
	}
}

func TestState_AdvancesMonotonically(t *testing.T) {
	eng := simengine.New()

	var d *instance.Data
	eng.RunSync(func(env scriptbridge.Env) {
		d = instance.Get(env)
	})

	if got := d.State(); got != instance.StateRunning {
		t.Errorf("State = %v before shutdown, want running", got)
	}

	eng.Shutdown()

	if got := d.State(); got != instance.StateStopped {
		t.Errorf("State = %v after shutdown, want stopped", got)
	}
	if d.Running() {
		t.Error("Running = true after shutdown")
	}
}

func TestOnTeardown_HooksRunInOrder(t *testing.T) {
	eng := simengine.New()

	var order []int
	eng.RunSync(func(env scriptbridge.Env) {
		d := instance.Get(env)
		d.OnTeardown(func(scriptbridge.Env) { order = append(order, 1) })
		d.OnTeardown(func(scriptbridge.Env) { order = append(order, 2) })
	})

	eng.Shutdown()

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("teardown hooks ran as %v, want [1 2]", order)
	}
}

func TestQueueDrop_DrainedByScriptThread(t *testing.T) {
	eng := simengine.New()
	defer eng.Shutdown()

	var id instance.ID
	var ref scriptbridge.Ref
	eng.RunSync(func(env scriptbridge.Env) {
		id = instance.Get(env).ID()
		ref = env.NewRef("parked")
	})

	instance.QueueDrop(id, ref)

	// flush the drain the drop signaler scheduled
	eng.RunSync(func(scriptbridge.Env) {})

	if n := instance.PendingDrops(id); n != 0 {
		t.Errorf("PendingDrops = %d after drain, want 0", n)
	}
	if n := eng.LiveRefs(); n != 0 {
		t.Errorf("LiveRefs = %d after drain, want 0", n)
	}
}

func TestQueueDrop_AfterStopDiscards(t *testing.T) {
	eng := simengine.New()

	var id instance.ID
	var ref scriptbridge.Ref
	eng.RunSync(func(env scriptbridge.Env) {
		id = instance.Get(env).ID()
		ref = env.NewRef("too late")
	})

	eng.Shutdown()

	instance.QueueDrop(id, ref)

	if n := instance.PendingDrops(id); n != 0 {
		t.Errorf("PendingDrops = %d for a stopped instance, want 0", n)
	}
}

func TestTeardown_DrainsParkedRefs(t *testing.T) {
	eng := simengine.New()

	var id instance.ID
	eng.RunSync(func(env scriptbridge.Env) {
		d := instance.Get(env)
		id = d.ID()
		// park refs without signaling a drain tick first
		instance.QueueDrop(id, env.NewRef("a"))
		instance.QueueDrop(id, env.NewRef("b"))
	})

	eng.Shutdown()

	if n := instance.PendingDrops(id); n != 0 {
		t.Errorf("PendingDrops = %d after teardown, want 0", n)
	}
	if n := eng.LiveRefs(); n != 0 {
		t.Errorf("LiveRefs = %d after teardown, want 0", n)
	}
}

func TestQueueDrop_RacingShutdownNeverStrandsRefs(t *testing.T) {
	for i := 0; i < 200; i++ {
		eng := simengine.New()

		var id instance.ID
		var ref scriptbridge.Ref
		eng.RunSync(func(env scriptbridge.Env) {
			id = instance.Get(env).ID()
			ref = env.NewRef(i)
		})

		parked := make(chan struct{})
		go func() {
			defer close(parked)
			instance.QueueDrop(id, ref)
		}()
		eng.Shutdown()
		<-parked

		// whichever side of teardown the drop landed on, nothing may stay
		// parked for a stopped instance
		if n := instance.PendingDrops(id); n != 0 {
			t.Fatalf("iteration %d: PendingDrops = %d after shutdown, want 0", i, n)
		}
	}
}

func TestChannelCounting(t *testing.T) {
	eng := simengine.New()
	defer eng.Shutdown()

	var d *instance.Data
	eng.RunSync(func(env scriptbridge.Env) {
		d = instance.Get(env)
	})

	d.RetainChannel()
	d.RetainChannel()
	d.ReleaseChannel()

	if got := d.Channels(); got != 1 {
		t.Errorf("Channels = %d, want 1", got)
	}

	st := d.Stats()
	if st.ID != d.ID() || st.Channels != 1 || st.State != instance.StateRunning {
		t.Errorf("Stats = %+v, unexpected snapshot", st)
	}
}

func TestLocalTable(t *testing.T) {
	eng := simengine.New()
	defer eng.Shutdown()

	key := instance.NewLocalKey()

	eng.RunSync(func(env scriptbridge.Env) {
		locals := instance.Get(env).Locals()

		if got := locals.Get(key); got != nil {
			t.Errorf("Get on empty cell = %v, want nil", got)
		}

		calls := 0
		init := func() any { calls++; return "cell" }
		if got := locals.GetOrInit(key, init); got != "cell" {
			t.Errorf("GetOrInit = %v, want cell", got)
		}
		if got := locals.GetOrInit(key, init); got != "cell" {
			t.Errorf("GetOrInit second call = %v, want cell", got)
		}
		if calls != 1 {
			t.Errorf("init ran %d times, want 1", calls)
		}

		locals.Set(key, "replaced")
		if got := locals.Get(key); got != "replaced" {
			t.Errorf("Get after Set = %v, want replaced", got)
		}
	})
}
