// Package handle provides Root, an owned, thread-transferable reference to a
// single script-engine value.
//
// A Root keeps its value out of the engine's garbage collector until
// released. Unlike a local Value, a Root may be moved between goroutines,
// typically captured by a closure sent through a dispatch.Channel:
//
//	// on the script thread
//	cb := handle.New(env, callbackValue)
//	ch, _ := dispatch.New(env)
//
//	go func() {
//	    result := compute()
//	    ch.Send(func(cx *dispatch.Context) (any, error) {
//	        fn, err := cb.Into(cx.Env())  // read back + release
//	        if err != nil {
//	            return nil, err
//	        }
//	        return invoke(cx.Env(), fn, result)
//	    })
//	}()
//
// # Release discipline
//
// Every *Root must be consumed exactly once, by Into, Unroot, or Release.
// Consuming twice panics; letting a Root be garbage collected unconsumed logs
// a leak warning. Clones share one underlying engine reference; the engine
// disposal happens once, after the last clone is consumed, and always on the
// script thread. Release is the only consuming operation callable off the
// script thread: it parks the reference on the instance drop queue instead of
// touching engine memory.
package handle
