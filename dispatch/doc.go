// Package dispatch decides, for every call on a catalog signature, whether
// the native implementation or a host override runs.
//
// Each call moves through Entered, then ResolvedNative or ResolvedOverride,
// then Returned. Observers see every transition.
//
// Native code reaches the bridge as a native.Dispatcher: a virtual call made
// from inside a native function arrives as (this, slot), is mapped back to
// the receiver's handle and then routed like any other call. This is what
// makes calls in both directions land on the same host object.
package dispatch
