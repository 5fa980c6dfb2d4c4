package env

import (
	"os"
	"strings"
	"sync"
)

type Var map[string]string

// Builder composes the isolated environment block handed to a child
// process. Layers, in increasing precedence: cached base (OS environment),
// derived variables, then the ordered override list. Overrides are applied
// in registration order so the last registration of a key wins regardless
// of whether it came from a configuration or from a caller.
//
// The builder never mutates the process-wide environment, so concurrent
// launches cannot observe each other's in-flight variables.
type Builder struct {
	mu        sync.Mutex
	base      Var  // cached from OS environment
	derived   Var  // configuration-derived variables
	overrides []kv // ordered: config overrides and custom vars interleaved
}

// kv is one override registration. fromConfig marks entries owned by the
// active configuration so they can be retired when it is replaced.
type kv struct {
	k, v       string
	fromConfig bool
}

func New() *Builder {
	return &Builder{derived: make(Var)}
}

// FromOS caches the current process environment as the base layer.
func (b *Builder) FromOS() {
	b.mu.Lock()
	b.base = nil
	b.ensureBase()
	b.mu.Unlock()
}

// SetDerived replaces one configuration-derived variable.
func (b *Builder) SetDerived(k, v string) {
	if k == "" {
		return
	}
	b.mu.Lock()
	b.derived[k] = v
	b.mu.Unlock()
}

// SetDerivedDefault sets a derived variable only when the base environment
// does not already define it (DISPLAY and friends).
func (b *Builder) SetDerivedDefault(k, v string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureBase()
	if _, ok := b.base[k]; !ok {
		b.derived[k] = v
	}
}

// ensureBase caches the OS environment if not done yet. Caller holds mu.
func (b *Builder) ensureBase() {
	if b.base != nil {
		return
	}
	base := make(Var)
	for _, entry := range os.Environ() {
		if i := strings.IndexByte(entry, '='); i > 0 {
			base[entry[:i]] = entry[i+1:]
		}
	}
	b.base = base
}

// ClearDerived drops all configuration-derived variables; called when a new
// configuration is applied.
func (b *Builder) ClearDerived() {
	b.mu.Lock()
	b.derived = make(Var)
	b.mu.Unlock()
}

// Set appends a caller-registered override. Later registrations of the
// same key win.
func (b *Builder) Set(k, v string) {
	if k == "" {
		return
	}
	b.mu.Lock()
	b.overrides = append(b.overrides, kv{k: k, v: v})
	b.mu.Unlock()
}

// SetConfigAll replaces the configuration-owned overrides with the given
// "KEY=VALUE" list. The previous configuration's entries are retired so a
// key dropped from the new configuration loses its value, while
// caller-registered overrides keep their position in the order. Malformed
// entries without '=' or with an empty key are skipped.
func (b *Builder) SetConfigAll(kvs []string) {
	b.mu.Lock()
	out := b.overrides[:0]
	for _, e := range b.overrides {
		if !e.fromConfig {
			out = append(out, e)
		}
	}
	b.overrides = out
	for _, entry := range kvs {
		if i := strings.IndexByte(entry, '='); i > 0 {
			b.overrides = append(b.overrides, kv{k: entry[:i], v: entry[i+1:], fromConfig: true})
		}
	}
	b.mu.Unlock()
}

// Unset removes every registration of a key from the override list.
func (b *Builder) Unset(k string) {
	b.mu.Lock()
	out := b.overrides[:0]
	for _, e := range b.overrides {
		if e.k != k {
			out = append(out, e)
		}
	}
	b.overrides = out
	b.mu.Unlock()
}

// Clear drops all overrides.
func (b *Builder) Clear() {
	b.mu.Lock()
	b.overrides = nil
	b.mu.Unlock()
}

// Merge builds the final environment in "K=V" form. extra entries are
// applied last, after the registered overrides. ${VAR} references are
// expanded once against the composed map.
func (b *Builder) Merge(extra []string) []string {
	b.mu.Lock()
	b.ensureBase()
	m := make(Var, len(b.base)+len(b.derived)+len(b.overrides))
	for k, v := range b.base {
		m[k] = v
	}
	for k, v := range b.derived {
		m[k] = v
	}
	for _, e := range b.overrides {
		m[e.k] = e.v
	}
	b.mu.Unlock()
	for _, entry := range extra {
		if i := strings.IndexByte(entry, '='); i > 0 {
			m[entry[:i]] = entry[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	return out
}

// expand performs simple, non-recursive ${VAR} expansion.
func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
