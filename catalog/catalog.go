package catalog

import (
	"strings"
	"sync"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/errors"
)

// Catalog is the signature catalog of one native class: every exposed
// operation with all of its overloads, in registration order.
//
// A Catalog is assembled once and then sealed. There is no deletion.
type Catalog struct {
	byName   map[string][]*Signature
	bySymbol map[string]*Signature
	class    string
	names    []string
	all      []*Signature
	virtuals []*Signature
	fields   []Field
	mu       sync.RWMutex
	sealed   bool
}

// New creates an empty catalog for class. Qualified names use "::".
func New(class string) *Catalog {
	return &Catalog{
		class:    class,
		byName:   make(map[string][]*Signature),
		bySymbol: make(map[string]*Signature),
	}
}

// Class returns the qualified class name.
func (c *Catalog) Class() string {
	return c.class
}

// ShortName returns the unqualified class name, which is also the
// operation name constructors are registered under.
func (c *Catalog) ShortName() string {
	if i := strings.LastIndex(c.class, "::"); i >= 0 {
		return c.class[i+2:]
	}
	return c.class
}

// DestructorName is the operation name of the destructor.
func (c *Catalog) DestructorName() string {
	return "~" + c.ShortName()
}

// AddField declares a data member. Fields are laid out in declaration order.
func (c *Catalog) AddField(name string, t abi.Type) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return errors.Sealed(c.class)
	}
	if !isIdentifier(name) {
		return errors.InvalidInput(errors.PhaseCatalog, "invalid field name "+quote(name))
	}
	for _, f := range c.fields {
		if f.Name == name {
			return errors.New(errors.PhaseCatalog, errors.KindDuplicateSignature).
				Operation(c.class).
				Detail("field %s declared twice", name).
				Build()
		}
	}
	c.fields = append(c.fields, Field{Name: name, Type: t})
	return nil
}

// Register adds sig under operation name. It fails with DuplicateSignature
// when an equivalent parameter sequence is already registered under name, or
// when the mangled symbol of sig is already taken in this catalog.
//
// Register fills in Class, Name, Symbol and Slot. A rejected signature is
// left as it was.
func (c *Catalog) Register(name string, sig *Signature) error {
	if sig == nil {
		return errors.InvalidInput(errors.PhaseCatalog, "nil signature")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed {
		return errors.Sealed(c.class)
	}
	if sig.Name != "" && sig.Name != name {
		return errors.InvalidInput(errors.PhaseCatalog,
			"signature named "+quote(sig.Name)+" registered under "+quote(name))
	}
	// checks run on a copy; sig is only filled in once it is accepted
	cand := *sig
	cand.Class = c.class
	cand.Name = name
	if err := c.validate(&cand); err != nil {
		return err
	}

	for _, existing := range c.byName[name] {
		if abi.EqualAll(existing.Types(), cand.Types()) {
			return errors.DuplicateSignature(name, cand.Prototype(), existing.Prototype())
		}
	}

	if cand.Symbol == "" {
		cand.Symbol = cand.mangled()
	}
	if existing, ok := c.bySymbol[cand.Symbol]; ok {
		err := errors.DuplicateSignature(name, cand.Prototype(), existing.Prototype())
		err.Value = cand.Symbol
		err.Detail += " (same symbol " + cand.Symbol + ")"
		return err
	}

	cand.Slot = -1
	if cand.Overridable() {
		cand.Slot = len(c.virtuals)
	}
	*sig = cand
	if sig.Overridable() {
		c.virtuals = append(c.virtuals, sig)
	}

	if _, ok := c.byName[name]; !ok {
		c.names = append(c.names, name)
	}
	c.byName[name] = append(c.byName[name], sig)
	c.bySymbol[sig.Symbol] = sig
	c.all = append(c.all, sig)
	return nil
}

func (c *Catalog) validate(sig *Signature) error {
	switch sig.Kind {
	case KindConstructor:
		if sig.Name != c.ShortName() {
			return errors.InvalidInput(errors.PhaseCatalog, "constructor must be named "+quote(c.ShortName()))
		}
		if sig.Virtual {
			return errors.InvalidInput(errors.PhaseCatalog, "constructors cannot be virtual")
		}
		sig.Result = abi.Void
	case KindDestructor:
		if sig.Name != c.DestructorName() {
			return errors.InvalidInput(errors.PhaseCatalog, "destructor must be named "+quote(c.DestructorName()))
		}
		if len(sig.Params) > 0 {
			return errors.InvalidInput(errors.PhaseCatalog, "destructors take no parameters")
		}
		sig.Result = abi.Void
	default:
		if !isIdentifier(sig.Name) {
			return errors.InvalidInput(errors.PhaseCatalog, "invalid operation name "+quote(sig.Name))
		}
	}
	for _, p := range sig.Params {
		if p.Type.Kind == abi.KindVoid {
			return errors.InvalidInput(errors.PhaseCatalog, sig.Name+": void parameter")
		}
	}
	return nil
}

// Method registers a non-virtual method.
func (c *Catalog) Method(name string, result abi.Type, params ...abi.Type) (*Signature, error) {
	sig := &Signature{Name: name, Result: result, Params: abi.Params(params...)}
	if err := c.Register(name, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// Virtual registers a virtual method. It receives the next vtable slot.
func (c *Catalog) Virtual(name string, result abi.Type, params ...abi.Type) (*Signature, error) {
	sig := &Signature{Name: name, Result: result, Params: abi.Params(params...), Virtual: true}
	if err := c.Register(name, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// Constructor registers a constructor overload.
func (c *Catalog) Constructor(params ...abi.Type) (*Signature, error) {
	name := c.ShortName()
	sig := &Signature{Name: name, Kind: KindConstructor, Params: abi.Params(params...)}
	if err := c.Register(name, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// Destructor registers the destructor. virtual only affects the declaration
// rendering; destructors never take part in override dispatch.
func (c *Catalog) Destructor(virtual bool) (*Signature, error) {
	name := c.DestructorName()
	sig := &Signature{Name: name, Kind: KindDestructor, Virtual: virtual}
	if err := c.Register(name, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// LookupAll returns the signatures registered under name in registration order.
func (c *Catalog) LookupAll(name string) []*Signature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Signature(nil), c.byName[name]...)
}

// Has reports whether any signature is registered under name.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName[name]) > 0
}

// Names returns the operation names in first-registration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.names...)
}

// Constructors returns the constructor overloads.
func (c *Catalog) Constructors() []*Signature {
	return c.LookupAll(c.ShortName())
}

// DestructorSig returns the destructor, or nil when none is declared.
func (c *Catalog) DestructorSig() *Signature {
	sigs := c.LookupAll(c.DestructorName())
	if len(sigs) == 0 {
		return nil
	}
	return sigs[0]
}

// Virtuals returns the overridable methods in slot order.
func (c *Catalog) Virtuals() []*Signature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Signature(nil), c.virtuals...)
}

// IsVirtual reports whether any overload registered under name is virtual.
func (c *Catalog) IsVirtual(name string) bool {
	for _, s := range c.LookupAll(name) {
		if s.Overridable() {
			return true
		}
	}
	return false
}

// BySlot returns the virtual method in vtable slot.
func (c *Catalog) BySlot(slot int) (*Signature, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if slot < 0 || slot >= len(c.virtuals) {
		return nil, false
	}
	return c.virtuals[slot], true
}

// BySymbol returns the signature with the given mangled symbol.
func (c *Catalog) BySymbol(symbol string) (*Signature, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.bySymbol[symbol]
	return s, ok
}

// Signatures returns every signature in registration order.
func (c *Catalog) Signatures() []*Signature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Signature(nil), c.all...)
}

// Fields returns the declared data members.
func (c *Catalog) Fields() []Field {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Field(nil), c.fields...)
}

// Field returns the data member called name and its index.
func (c *Catalog) Field(name string) (Field, int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, f := range c.fields {
		if f.Name == name {
			return f, i, true
		}
	}
	return Field{}, -1, false
}

// Layout computes the storage layout of the class under model.
func (c *Catalog) Layout(model abi.DataModel) (abi.Layout, error) {
	fields := c.Fields()
	types := make([]abi.Type, len(fields))
	for i, f := range fields {
		types[i] = f.Type
	}
	l, err := abi.LayoutFields(model, types)
	if err != nil {
		return abi.Layout{}, errors.Wrap(errors.PhaseCatalog, errors.KindUnsupported, err, "layout of "+c.class)
	}
	return l, nil
}

// Seal freezes the catalog. Further registration fails with Sealed.
func (c *Catalog) Seal() {
	c.mu.Lock()
	c.sealed = true
	c.mu.Unlock()
}

// Sealed reports whether the catalog is frozen.
func (c *Catalog) Sealed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sealed
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func quote(s string) string {
	return "\"" + s + "\""
}
