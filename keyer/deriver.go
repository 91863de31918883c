package keyer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"
)

// Key is a canonical, deterministic cache key derived from a call's
// included argument values.
type Key string

// Ignore excludes a parameter from key derivation, either by declared name
// or by zero-based declaration position. Index-based ignores are resolved
// to the parameter name at deriver construction, so ignoring the same
// parameter by name and by index is equivalent.
type Ignore struct {
	name  string
	index int
	byIdx bool
}

// ByName excludes the named parameter from the key.
func ByName(name string) Ignore { return Ignore{name: name} }

// ByIndex excludes the parameter at the given declaration position from the
// key.
func ByIndex(i int) Ignore { return Ignore{index: i, byIdx: true} }

// Deriver derives cache keys for one signature, excluding an ignore set.
type Deriver struct {
	sig     *Signature
	ignored map[string]bool
}

// NewDeriver builds a Deriver for the signature. Ignore entries are
// validated and resolved against the signature once, here: an index out of
// range or a name that matches no declared parameter is an error.
func NewDeriver(sig *Signature, ignore ...Ignore) (*Deriver, error) {
	if sig == nil {
		return nil, fmt.Errorf("%w: nil signature", ErrBind)
	}
	ignored := make(map[string]bool, len(ignore))
	for _, ig := range ignore {
		if ig.byIdx {
			if ig.index < 0 || ig.index >= len(sig.params) {
				return nil, fmt.Errorf("%w: %d (signature has %d parameters)",
					ErrIgnoreOutOfRange, ig.index, len(sig.params))
			}
			ignored[sig.params[ig.index].Name] = true
			continue
		}
		if _, ok := sig.index[ig.name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParam, ig.name)
		}
		ignored[ig.name] = true
	}
	return &Deriver{sig: sig, ignored: ignored}, nil
}

// Signature returns the signature the deriver binds against.
func (d *Deriver) Signature() *Signature { return d.sig }

// Bind binds a call's arguments against the deriver's signature.
func (d *Deriver) Bind(args []any, kwargs map[string]any) (Bound, error) {
	return d.sig.Bind(args, kwargs)
}

// Key derives the cache key for bound arguments: declared parameters are
// visited in declaration order, absent and ignored ones are skipped, and
// each remaining value's canonical projection is appended to an ordered
// sequence that is then hashed. Derivation never fails for exotic values;
// those are replaced by identity surrogates (see projection).
func (d *Deriver) Key(b Bound) (Key, error) {
	if b.sig != d.sig {
		return "", fmt.Errorf("%w: arguments bound against a different signature", ErrBind)
	}

	seq := make([]byte, 0, 64)
	seq = append(seq, '[')
	n := 0
	for _, p := range d.sig.params {
		v, ok := b.values[p.Name]
		if !ok || d.ignored[p.Name] {
			continue
		}
		if n > 0 {
			seq = append(seq, ',')
		}
		seq = append(seq, projection(v)...)
		n++
	}
	seq = append(seq, ']')

	sum := sha256.Sum256(seq)
	return Key(hex.EncodeToString(sum[:])), nil
}

// Derive binds and hashes in one step.
func (d *Deriver) Derive(args []any, kwargs map[string]any) (Key, error) {
	b, err := d.Bind(args, kwargs)
	if err != nil {
		return "", err
	}
	return d.Key(b)
}

// surrogateSeq feeds identity surrogates for values that are neither
// encodable nor reference-backed, so two such values never compare equal.
var surrogateSeq atomic.Uint64

// projection returns a canonical byte form of v. Values that encode to
// deterministic JSON are used as-is (map keys sorted). Values that cannot
// be encoded are replaced by an identity surrogate: reference kinds are
// tagged with their type and pointer, anything else gets a process-unique
// nonce. Surrogate-keyed arguments therefore never hit the cache across
// distinct instances, but key derivation itself never fails.
func projection(v any) []byte {
	if v == nil {
		return []byte("null")
	}
	if b, err := canonicalJSON(v); err == nil {
		return b
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return []byte(fmt.Sprintf(`{"__id__":"%s@0x%x"}`, rv.Type(), rv.Pointer()))
	default:
		return []byte(fmt.Sprintf(`{"__id__":"%s#%d"}`, rv.Type(), surrogateSeq.Add(1)))
	}
}

// canonicalJSON produces deterministic JSON: maps are emitted with sorted
// keys so two equal maps project identically regardless of iteration order.
func canonicalJSON(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		return canonicalMap(val)
	case []any:
		return canonicalSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')
		valBytes, err := canonicalJSON(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalJSON(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}
