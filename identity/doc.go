// Package identity maintains the pairing between native objects and their
// host counterparts.
//
// A Binding Record pairs exactly one native handle with exactly one host
// object. Native code only ever holds the handle; the host object is found
// through the registry, never through raw storage on the native side.
//
//	reg := identity.NewRegistry()
//	reg.Bind(h, host, "get_python_member", "run_python")
//	host, _ := reg.LookupHost(h)
//	h, _ = reg.LookupNative(host)
//	reg.Unbind(h) // once, at native destruction
//
// After Unbind both directions fail with Unbound. A second Bind on a paired
// handle or host fails with AlreadyBound and leaves the pairing untouched.
//
// Each record carries an override table naming the virtual operations the
// host implements. The dispatch bridge consults it through Route on every
// virtual call.
package identity
