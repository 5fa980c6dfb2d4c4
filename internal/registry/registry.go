package registry

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const hiveHeader = "WINE REGISTRY Version 2"

// Value is one named entry under a key. Raw holds the right-hand side
// exactly as it appears in the hive file ("string", dword:000000ff, ...).
type Value struct {
	Name string
	Raw  string
}

// Key is one registry key with its values in file order.
type Key struct {
	Path     string
	Modified int64
	Values   []Value
}

func (k *Key) lookup(name string) int {
	for i := range k.Values {
		if strings.EqualFold(k.Values[i].Name, name) {
			return i
		}
	}
	return -1
}

// Hive is a parsed registry file (system.reg or user.reg). Mutations
// happen in memory; Save rewrites the whole file.
type Hive struct {
	mu     sync.Mutex
	path   string
	header []string
	keys   []*Key
	index  map[string]*Key
}

// Load parses the hive at path. A missing file yields an empty hive that
// Save will create.
func Load(path string) (*Hive, error) {
	h := &Hive{path: path, index: make(map[string]*Key)}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			h.header = []string{hiveHeader}
			return h, nil
		}
		return nil, fmt.Errorf("open hive: %w", err)
	}
	defer func() { _ = f.Close() }()

	var cur *Key
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, ";;"):
			continue
		case strings.HasPrefix(trimmed, "["):
			end := strings.LastIndex(trimmed, "]")
			if end < 1 {
				continue
			}
			k := &Key{Path: unescapeKey(trimmed[1:end])}
			if rest := strings.TrimSpace(trimmed[end+1:]); rest != "" {
				if ts, err := strconv.ParseInt(strings.Fields(rest)[0], 10, 64); err == nil {
					k.Modified = ts
				}
			}
			h.keys = append(h.keys, k)
			h.index[normKey(k.Path)] = k
			cur = k
		case cur == nil:
			h.header = append(h.header, line)
		default:
			name, raw, ok := splitValue(trimmed)
			if !ok {
				continue
			}
			cur.Values = append(cur.Values, Value{Name: name, Raw: raw})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse hive: %w", err)
	}
	if len(h.header) == 0 {
		h.header = []string{hiveHeader}
	}
	return h, nil
}

// GetString resolves key\value to its decoded string form. DWORD values
// come back as decimal text.
func (h *Hive) GetString(keyPath, name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k, ok := h.index[normKey(keyPath)]
	if !ok {
		return "", false
	}
	i := k.lookup(name)
	if i < 0 {
		return "", false
	}
	return decodeRaw(k.Values[i].Raw), true
}

// SetString stores a quoted string value, creating the key if needed.
func (h *Hive) SetString(keyPath, name, value string) {
	h.setRaw(keyPath, name, `"`+escapeString(value)+`"`)
}

// SetDWord stores a dword value.
func (h *Hive) SetDWord(keyPath, name string, value uint32) {
	h.setRaw(keyPath, name, fmt.Sprintf("dword:%08x", value))
}

func (h *Hive) setRaw(keyPath, name, raw string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k, ok := h.index[normKey(keyPath)]
	if !ok {
		k = &Key{Path: keyPath}
		h.keys = append(h.keys, k)
		h.index[normKey(keyPath)] = k
	}
	k.Modified = time.Now().Unix()
	if i := k.lookup(name); i >= 0 {
		k.Values[i].Raw = raw
		return
	}
	k.Values = append(k.Values, Value{Name: name, Raw: raw})
}

// DeleteValue removes one value; reports whether it existed.
func (h *Hive) DeleteValue(keyPath, name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	k, ok := h.index[normKey(keyPath)]
	if !ok {
		return false
	}
	i := k.lookup(name)
	if i < 0 {
		return false
	}
	k.Values = append(k.Values[:i], k.Values[i+1:]...)
	k.Modified = time.Now().Unix()
	return true
}

// DeleteKey removes a key and everything under it.
func (h *Hive) DeleteKey(keyPath string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	prefix := normKey(keyPath) + `\`
	found := false
	kept := h.keys[:0]
	for _, k := range h.keys {
		n := normKey(k.Path)
		if n == normKey(keyPath) || strings.HasPrefix(n, prefix) {
			delete(h.index, n)
			found = true
			continue
		}
		kept = append(kept, k)
	}
	h.keys = kept
	return found
}

// Keys lists all key paths in file order.
func (h *Hive) Keys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.keys))
	for i, k := range h.keys {
		out[i] = k.Path
	}
	return out
}

// Save writes the hive back to its file atomically via a temp file.
func (h *Hive) Save() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var b strings.Builder
	for _, line := range h.header {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	for _, k := range h.keys {
		mod := k.Modified
		if mod == 0 {
			mod = time.Now().Unix()
		}
		fmt.Fprintf(&b, "[%s] %d\n", escapeKey(k.Path), mod)
		for _, v := range k.Values {
			if v.Name == "" {
				fmt.Fprintf(&b, "@=%s\n", v.Raw)
				continue
			}
			fmt.Fprintf(&b, "\"%s\"=%s\n", escapeString(v.Name), v.Raw)
		}
		b.WriteByte('\n')
	}
	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write hive: %w", err)
	}
	return os.Rename(tmp, h.path)
}

// splitValue breaks `"Name"="value"` or `@=dword:...` into its parts.
func splitValue(line string) (name, raw string, ok bool) {
	if strings.HasPrefix(line, "@=") {
		return "", strings.TrimSpace(line[2:]), true
	}
	if !strings.HasPrefix(line, `"`) {
		return "", "", false
	}
	i := 1
	for i < len(line) {
		if line[i] == '\\' {
			i += 2
			continue
		}
		if line[i] == '"' {
			break
		}
		i++
	}
	if i >= len(line) {
		return "", "", false
	}
	rest := strings.TrimSpace(line[i+1:])
	if !strings.HasPrefix(rest, "=") {
		return "", "", false
	}
	return unescapeString(line[1:i]), strings.TrimSpace(rest[1:]), true
}

func decodeRaw(raw string) string {
	switch {
	case strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) && len(raw) >= 2:
		return unescapeString(raw[1 : len(raw)-1])
	case strings.HasPrefix(raw, "dword:"):
		if n, err := strconv.ParseUint(raw[len("dword:"):], 16, 32); err == nil {
			return strconv.FormatUint(n, 10)
		}
	}
	return raw
}

func normKey(k string) string { return strings.ToLower(k) }

func escapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return r.Replace(s)
}

func unescapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Key paths in hive files escape backslashes doubled.
func escapeKey(k string) string { return strings.ReplaceAll(k, `\`, `\\`) }
func unescapeKey(k string) string { return strings.ReplaceAll(k, `\\`, `\`) }
