package keyer

import (
	"errors"
	"fmt"
)

// Sentinel errors for argument binding and deriver construction.
var (
	ErrBind             = errors.New("keyer: cannot bind arguments to signature")
	ErrDuplicateParam   = errors.New("keyer: duplicate parameter name")
	ErrUnknownParam     = errors.New("keyer: unknown parameter")
	ErrIgnoreOutOfRange = errors.New("keyer: ignore index out of range")
)

// Param declares one parameter of a cached function: its name and, if the
// parameter is optional, its default value.
type Param struct {
	Name       string
	Default    any
	HasDefault bool
}

// P declares a required parameter.
func P(name string) Param {
	return Param{Name: name}
}

// PD declares an optional parameter with a default value. A call that omits
// the parameter and a call that passes the default explicitly bind to the
// same value and therefore derive the same key.
func PD(name string, def any) Param {
	return Param{Name: name, Default: def, HasDefault: true}
}

// Signature is the declared parameter list of a cached function, captured
// once at decoration time. Position 0 is the first declared parameter; for
// methods the receiver counts as position 0 when it is declared.
type Signature struct {
	params []Param
	index  map[string]int
}

// NewSignature builds a Signature from parameters in declaration order.
func NewSignature(params ...Param) (*Signature, error) {
	index := make(map[string]int, len(params))
	for i, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: parameter %d has no name", ErrBind, i)
		}
		if _, ok := index[p.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateParam, p.Name)
		}
		index[p.Name] = i
	}
	return &Signature{params: params, index: index}, nil
}

// MustSignature is like NewSignature but panics on error. For package-level
// declarations.
func MustSignature(params ...Param) *Signature {
	s, err := NewSignature(params...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of declared parameters.
func (s *Signature) Len() int { return len(s.params) }

// Names returns the declared parameter names in declaration order.
func (s *Signature) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// Bound holds the arguments of one call bound against a Signature, in
// declaration order. Parameters that were not supplied and have no default
// are absent.
type Bound struct {
	sig    *Signature
	values map[string]any
}

// Bind binds positional and keyword arguments against the signature and
// applies declared defaults for unsupplied optional parameters.
//
// Binding is partial: a required parameter that is not supplied is simply
// absent from the result. Binding fails with ErrBind when there are more
// positional arguments than declared parameters, when a keyword argument
// does not match any declared parameter, or when a parameter is assigned
// both positionally and by keyword.
func (s *Signature) Bind(args []any, kwargs map[string]any) (Bound, error) {
	if len(args) > len(s.params) {
		return Bound{}, fmt.Errorf("%w: %d positional arguments for %d parameters",
			ErrBind, len(args), len(s.params))
	}

	values := make(map[string]any, len(s.params))
	for i, v := range args {
		values[s.params[i].Name] = v
	}
	for name, v := range kwargs {
		if _, ok := s.index[name]; !ok {
			return Bound{}, fmt.Errorf("%w: %w %q", ErrBind, ErrUnknownParam, name)
		}
		if _, dup := values[name]; dup {
			return Bound{}, fmt.Errorf("%w: parameter %q assigned twice", ErrBind, name)
		}
		values[name] = v
	}
	for _, p := range s.params {
		if _, ok := values[p.Name]; !ok && p.HasDefault {
			values[p.Name] = p.Default
		}
	}

	return Bound{sig: s, values: values}, nil
}

// Get returns the bound value for a parameter name.
func (b Bound) Get(name string) (any, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Len returns the number of bound parameters.
func (b Bound) Len() int { return len(b.values) }

// Values returns the bound values in declaration order, skipping absent
// parameters.
func (b Bound) Values() []any {
	out := make([]any, 0, len(b.values))
	for _, p := range b.sig.params {
		if v, ok := b.values[p.Name]; ok {
			out = append(out, v)
		}
	}
	return out
}
