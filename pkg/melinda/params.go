package melinda

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Params is an ordered set of query parameters. Keys keep the position of
// their first Add; absent values (nil, nil pointers, empty optionals) are
// dropped rather than encoded as empty strings.
type Params struct {
	keys   []string
	values map[string]string
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{values: map[string]string{}}
}

// Add sets key to value. A value that formats as absent leaves any previous
// value for key untouched.
func (p *Params) Add(key string, value any) *Params {
	v, ok := formatParam(value)
	if !ok {
		return p
	}
	if p.values == nil {
		p.values = map[string]string{}
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
	return p
}

// Merge overlays other onto a copy of p. Keys already present keep their
// position; values from other win.
func (p *Params) Merge(other *Params) *Params {
	out := p.Clone()
	if other == nil {
		return out
	}
	for _, k := range other.keys {
		out.Add(k, other.values[k])
	}
	return out
}

// Clone returns an independent copy.
func (p *Params) Clone() *Params {
	out := NewParams()
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		out.Add(k, p.values[k])
	}
	return out
}

// Get returns the encoded value for key.
func (p *Params) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Len reports the number of keys.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Encode renders the parameters in insertion order using form encoding.
func (p *Params) Encode() string {
	if p.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.values[k]))
	}
	return b.String()
}

func formatParam(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case bool:
		return boolFlag(v), true
	case *bool:
		if v == nil {
			return "", false
		}
		return boolFlag(*v), true
	case int:
		return strconv.Itoa(v), true
	case *int:
		if v == nil {
			return "", false
		}
		return strconv.Itoa(*v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case []string:
		if len(v) == 0 {
			return "", false
		}
		return strings.Join(v, ","), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// optional turns the zero value of a string option into an absent parameter.
func optional(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// optionalInt drops non-positive counts such as skip/limit.
func optionalInt(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}

// Bool returns a pointer to b, for optional flags.
func Bool(b bool) *bool { return &b }
