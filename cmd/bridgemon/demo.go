package main

import (
	"sync"
	"time"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/dispatch"
	"github.com/wippyai/script-bridge/handle"
	"github.com/wippyai/script-bridge/instance"
	"github.com/wippyai/script-bridge/simengine"
)

// demo drives a synthetic workload through the bridge: workers send tasks
// that root values on the script thread, hand them back, and release them off
// thread. Every fiftieth task panics to exercise the uncaught-failure path.
type demo struct {
	eng  *simengine.Engine
	ch   *dispatch.Channel
	inst *instance.Data

	stop chan struct{}
	wg   sync.WaitGroup
}

type snapshot struct {
	Instance instance.Stats
	Channel  dispatch.Stats
	LiveRefs int
	Uncaught int
}

func startDemo(workers int, interval time.Duration) *demo {
	d := &demo{
		eng:  simengine.New(),
		stop: make(chan struct{}),
	}

	d.eng.RunSync(func(env scriptbridge.Env) {
		d.inst = instance.Get(env)
		ch, err := dispatch.New(env)
		if err != nil {
			panic("bridgemon: create channel: " + err.Error())
		}
		d.ch = ch
	})

	for w := 0; w < workers; w++ {
		d.wg.Add(1)
		go d.worker(w, interval)
	}
	return d
}

func (d *demo) worker(id int, interval time.Duration) {
	defer d.wg.Done()

	ch := d.ch.Clone()
	defer ch.Close()

	for n := 0; ; n++ {
		select {
		case <-d.stop:
			return
		case <-time.After(interval):
		}

		if n%50 == 49 {
			ch.Post(func(cx *dispatch.Context) (any, error) {
				panic("synthetic failure")
			})
			continue
		}

		h := ch.Send(func(cx *dispatch.Context) (any, error) {
			return cx.Root(id*1000 + n), nil
		})

		got, err := h.Join()
		if err != nil {
			// shutdown raced the send; the handle settled, nothing to release
			continue
		}
		r := got.(*handle.Root)
		c := r.Clone()
		c.Release()
		r.Release()
	}
}

func (d *demo) snapshot() snapshot {
	return snapshot{
		Instance: d.inst.Stats(),
		Channel:  d.ch.Stats(),
		LiveRefs: d.eng.LiveRefs(),
		Uncaught: len(d.eng.Uncaught()),
	}
}

func (d *demo) shutdown() {
	close(d.stop)
	d.wg.Wait()
	d.eng.Shutdown()
}
