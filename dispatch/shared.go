package dispatch

import (
	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/instance"
)

var sharedKey = instance.NewLocalKey()

// SharedChannel returns a clone of the instance's lazily created shared
// channel. Signaler registration is expensive, so code that just needs "a way
// back to the script thread" should prefer this over creating its own
// channel. Must be called on the script thread.
func SharedChannel(env scriptbridge.Env) *Channel {
	d := instance.Get(env)
	base := d.Locals().GetOrInit(sharedKey, func() any {
		ch, err := New(env)
		if err != nil {
			panic("scriptbridge: create shared channel: " + err.Error())
		}
		return ch
	}).(*Channel)
	return base.Clone()
}
