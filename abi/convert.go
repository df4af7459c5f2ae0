package abi

// Conversion is the implicit conversion needed to pass an argument of one
// descriptor to a parameter of another.
type Conversion uint8

const (
	// ConvNone means the argument cannot be passed to the parameter.
	ConvNone Conversion = iota
	// ConvExact means the descriptors are equivalent.
	ConvExact
	// ConvWiden is an integer widening of a by-value argument.
	ConvWiden
)

func (c Conversion) String() string {
	switch c {
	case ConvExact:
		return "exact"
	case ConvWiden:
		return "widen"
	}
	return "none"
}

// Convert applies the closed conversion table. Only exact matches and integer
// widening are allowed: no value to pointer, no pointer to reference, no const
// interchange at any level.
func Convert(arg, param Type) Conversion {
	if Equal(arg, param) {
		return ConvExact
	}
	if Widens(arg, param) {
		return ConvWiden
	}
	return ConvNone
}

// Widens reports whether a by-value integral arg widens to param: the target
// rank is strictly greater and a signed source never widens to an unsigned
// target.
func Widens(arg, param Type) bool {
	if !arg.Kind.IsIntegral() || !param.Kind.IsIntegral() {
		return false
	}
	if arg.Const != param.Const {
		return false
	}
	if arg.Kind.Rank() >= param.Kind.Rank() {
		return false
	}
	return !(arg.Kind.IsSigned() && !param.Kind.IsSigned())
}
