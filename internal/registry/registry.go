package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry is the fixed set of known computer IDs. It is immutable for the
// process lifetime; the store is seeded from it on start and unrecognized IDs
// fail fast before the store is consulted.

type Registry struct {
	ids []string // sorted, unique
}

// defaultIDs is the compiled-in inventory used when no override is configured.
var defaultIDs = []string{
	"WXDKDSA10044W", "WXDKDSA10173W", "W7DKDSA05967", "WXDKDSA10175W", "WXDKDSA10309W",
	"WXDKDSA05969W", "WXDKDSA12991W", "WXDKDSA10043W", "WXDKDSA05973W", "WXDKDSA13170W",
	"WXDKDSA00128W", "WXDKDSA00131W", "WXDKDSA00356L", "WXDKDSA11357L", "WXDKDSA12403W",
	"WXDKDSA12404W", "WXDKDSA12406W", "WXDKDSA12407W", "W7DKDSA05770W", "WXDKDSA00127W",
	"WXDKDSA00130W", "WXDKDSA13169W", "WXDKDSA10063W", "WXDKDSA10988W", "WXDKDSA11760W",
	"WXDKDSA00359L", "WXDKDSA00355L", "WXDKDSA05970W", "WXDKDSA13189W", "WXDKDSA13188W",
}

// Default returns the compiled-in inventory.
func Default() *Registry {
	r, _ := New(defaultIDs)
	return r
}

// New builds a registry from ids: validated, deduplicated, sorted lexically.
func New(ids []string) (*Registry, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if !ValidID(id) {
			return nil, fmt.Errorf("invalid computer id %q: allowed [A-Za-z0-9._-] without '..'", id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("registry requires at least one computer id")
	}
	sort.Strings(out)
	return &Registry{ids: out}, nil
}

// Load reads a newline-delimited inventory file. Blank lines and lines
// starting with # are ignored.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return New(ids)
}

// IDs returns the inventory in lexical order. The slice is a copy.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *Registry) Len() int { return len(r.ids) }

func (r *Registry) Contains(id string) bool {
	i := sort.SearchStrings(r.ids, id)
	return i < len(r.ids) && r.ids[i] == id
}

// ValidID reports whether id is a well-formed computer identifier.
// Allowed characters: A-Z a-z 0-9 . _ - and no ".." sequences.
func ValidID(id string) bool {
	if id == "" || strings.Contains(id, "..") {
		return false
	}
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}
