// Package env expands environment references in configured paths.
package env

import (
	"os"
	"runtime"
	"strings"
)

type Var map[string]string

type Env struct {
	Var Var // overrides applied on top of the OS environment
	env Var // cached base from OS environment

	// foldCase matches names case-insensitively, as Windows does.
	foldCase bool
}

func New() *Env {
	return &Env{
		Var:      make(Var),
		foldCase: runtime.GOOS == "windows",
	}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			v := kv[i+1:]
			if k == "" {
				continue
			}
			base[k] = v
		}
	}
	e.env = base
}

// Set sets an override K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// Lookup resolves k against the overrides, then the OS environment.
func (e *Env) Lookup(k string) (string, bool) {
	if e.env == nil {
		e.FromOS()
	}
	for _, m := range []Var{e.Var, e.env} {
		if v, ok := m[k]; ok {
			return v, true
		}
		if !e.foldCase {
			continue
		}
		for mk, v := range m {
			if strings.EqualFold(mk, k) {
				return v, true
			}
		}
	}
	return "", false
}

// Expand replaces ${VAR} and %VAR% references in s. Unknown references are
// left untouched so that a typo stays visible in the resulting path.
// Expansion is a single pass; values are not expanded again.
func (e *Env) Expand(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "${"):
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			name := s[i+2 : i+2+end]
			ref := s[i : i+3+end]
			i += len(ref)
			e.writeRef(&b, name, ref)
		case s[i] == '%':
			end := strings.IndexByte(s[i+1:], '%')
			if end <= 0 {
				b.WriteByte('%')
				i++
				continue
			}
			name := s[i+1 : i+1+end]
			ref := s[i : i+2+end]
			i += len(ref)
			e.writeRef(&b, name, ref)
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

func (e *Env) writeRef(b *strings.Builder, name, ref string) {
	if v, ok := e.Lookup(name); ok && name != "" {
		b.WriteString(v)
		return
	}
	b.WriteString(ref)
}
