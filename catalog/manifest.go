package catalog

import (
	"bytes"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/cxxbridge/abi"
	"github.com/wippyai/cxxbridge/errors"
)

// Manifest is the YAML description of one or more native classes.
//
//	classes:
//	  - name: NonVirtual
//	    fields:
//	      - void* py_object
//	      - int result
//	    constructors:
//	      - params: []
//	      - params: [int]
//	    destructor: true
//	    methods:
//	      - name: foo
//	        result: int
//	        params: [int, int, int]
type Manifest struct {
	Classes []ClassSpec `yaml:"classes" validate:"required,min=1,dive"`
}

// ClassSpec describes one class.
type ClassSpec struct {
	Destructor   *DestructorSpec `yaml:"destructor"`
	Name         string          `yaml:"name" validate:"required"`
	Fields       []ParamSpec     `yaml:"fields" validate:"dive"`
	Constructors []MethodSpec    `yaml:"constructors" validate:"dive"`
	Methods      []MethodSpec    `yaml:"methods" validate:"dive"`
}

// MethodSpec describes one method or constructor overload.
type MethodSpec struct {
	Name    string      `yaml:"name"`
	Result  string      `yaml:"result"`
	Symbol  string      `yaml:"symbol"`
	Params  []ParamSpec `yaml:"params" validate:"dive"`
	Virtual bool        `yaml:"virtual"`
}

// DestructorSpec is either a boolean or a mapping with virtual and symbol.
type DestructorSpec struct {
	Symbol   string `yaml:"symbol"`
	Declared bool   `yaml:"-"`
	Virtual  bool   `yaml:"virtual"`
}

// UnmarshalYAML accepts "destructor: true" as well as a mapping.
func (d *DestructorSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&d.Declared)
	}
	type plain DestructorSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*d = DestructorSpec(p)
	d.Declared = true
	return nil
}

// ParamSpec is a parameter or field: a declaration string such as
// "const char* text" or a mapping with name and type.
type ParamSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type" validate:"required"`
}

// UnmarshalYAML accepts a scalar declaration or a {name, type} mapping.
func (p *ParamSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		p.Type = node.Value
		return nil
	}
	type plain ParamSpec
	var v plain
	if err := node.Decode(&v); err != nil {
		return err
	}
	*p = ParamSpec(v)
	return nil
}

// Param parses the declaration into a descriptor. A name in the mapping form
// takes precedence over one embedded in the type string.
func (p ParamSpec) Param() (abi.Param, error) {
	param, err := abi.ParseParam(p.Type)
	if err != nil {
		return abi.Param{}, err
	}
	if p.Name != "" {
		param.Name = p.Name
	}
	return param, nil
}

var manifestValidate = validator.New()

// ParseManifest decodes and validates a manifest without building catalogs.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return nil, errors.ParseFailed("manifest", err)
	}
	if err := manifestValidate.Struct(&m); err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "invalid manifest")
	}
	return &m, nil
}

// LoadManifest reads a manifest and builds one sealed catalog per class.
func LoadManifest(r io.Reader) ([]*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.ParseFailed("manifest", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	return m.Build()
}

// LoadManifestFile is LoadManifest on a file.
func LoadManifestFile(path string) ([]*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Load("open manifest "+path, err)
	}
	defer f.Close()
	return LoadManifest(f)
}

// Build assembles and seals a catalog per class, in document order.
func (m *Manifest) Build() ([]*Catalog, error) {
	cats := make([]*Catalog, 0, len(m.Classes))
	seen := make(map[string]bool, len(m.Classes))
	for i := range m.Classes {
		spec := &m.Classes[i]
		if seen[spec.Name] {
			return nil, errors.InvalidInput(errors.PhaseParse, "class "+quote(spec.Name)+" declared twice")
		}
		seen[spec.Name] = true

		cat, err := spec.Build()
		if err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// Build assembles and seals the catalog of one class.
func (s *ClassSpec) Build() (*Catalog, error) {
	cat := New(s.Name)

	for _, f := range s.Fields {
		p, err := f.Param()
		if err != nil {
			return nil, err
		}
		if p.Name == "" {
			return nil, errors.InvalidInput(errors.PhaseParse, s.Name+": field "+quote(f.Type)+" has no name")
		}
		if err := cat.AddField(p.Name, p.Type); err != nil {
			return nil, err
		}
	}

	for _, ctor := range s.Constructors {
		params, err := parseParams(ctor.Params)
		if err != nil {
			return nil, err
		}
		sig := &Signature{Kind: KindConstructor, Params: params, Symbol: ctor.Symbol}
		if err := cat.Register(cat.ShortName(), sig); err != nil {
			return nil, err
		}
	}

	if s.Destructor != nil && s.Destructor.Declared {
		sig := &Signature{Kind: KindDestructor, Virtual: s.Destructor.Virtual, Symbol: s.Destructor.Symbol}
		if err := cat.Register(cat.DestructorName(), sig); err != nil {
			return nil, err
		}
	}

	for _, m := range s.Methods {
		params, err := parseParams(m.Params)
		if err != nil {
			return nil, err
		}
		result := abi.Void
		if m.Result != "" {
			if result, err = abi.Parse(m.Result); err != nil {
				return nil, err
			}
		}
		sig := &Signature{Result: result, Params: params, Virtual: m.Virtual, Symbol: m.Symbol}
		if err := cat.Register(m.Name, sig); err != nil {
			return nil, err
		}
	}

	cat.Seal()
	return cat, nil
}

func parseParams(specs []ParamSpec) ([]abi.Param, error) {
	params := make([]abi.Param, 0, len(specs))
	for _, ps := range specs {
		p, err := ps.Param()
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}
