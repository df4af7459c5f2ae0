// Package marshal converts values between Go and the native side.
//
// Describe infers the call-site descriptor of a Go argument, which the
// overload resolver matches against catalog signatures:
//
//	int, int32        int
//	int16             short
//	int8              signed char
//	uint8             unsigned char
//	int64             long
//	uint, uint32      unsigned int
//	uint16            unsigned short
//	uint64            unsigned long
//	bool, float32     bool, float
//	float64           double
//	string            const char*
//	Char, WChar       char, wchar_t
//	LongLong          long long
//	ULongLong         unsigned long long
//	*T, []T           T*
//	Object            Class*
//
// Const and Ref adjust the descriptor of a pointer argument; Typed states it
// outright.
//
// Lower turns arguments into raw slots, copying pointer arguments into
// scratch memory. After the native call, Frame.Finish copies non-const
// output channels back into the Go variables they came from. Lift turns raw
// results back into Go values, with pointers becoming Pointer.
package marshal
