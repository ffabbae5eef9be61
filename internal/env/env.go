package env

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Var maps variable names to values.
type Var map[string]string

// Env composes the environment handed to start commands.
// Precedence, lowest first: OS environment (when enabled), env files in
// order, global variables, then per-target variables.
type Env struct {
	base Var
	vars Var
}

// New returns an Env with no base and no variables.
func New() *Env {
	return &Env{base: Var{}, vars: Var{}}
}

// Load builds an Env from configuration. files are read in order with later
// files overriding earlier ones; kvs are "KEY=VALUE" entries applied last.
func Load(useOS bool, files []string, kvs []string) (*Env, error) {
	e := New()
	if useOS {
		e.base = parsePairs(os.Environ())
	}
	for _, p := range files {
		m, err := readFile(p)
		if err != nil {
			return nil, fmt.Errorf("env file %s: %w", p, err)
		}
		for k, v := range m {
			e.vars[k] = v
		}
	}
	for k, v := range parsePairs(kvs) {
		e.vars[k] = v
	}
	return e, nil
}

// Set sets a global variable K=V.
func (e *Env) Set(k, v string) {
	if k != "" {
		e.vars[k] = v
	}
}

// Merge composes the final environment for one target. ${VAR} references in
// values are expanded once against the composed map; unknown references
// expand to the empty string. The result is sorted by key.
func (e *Env) Merge(perTarget []string) []string {
	m := make(Var, len(e.base)+len(e.vars)+len(perTarget))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.vars {
		m[k] = v
	}
	for k, v := range parsePairs(perTarget) {
		m[k] = v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+expand(m[k], m))
	}
	return out
}

// expand replaces ${NAME} with m[NAME]. A bare $ is left alone so shell
// snippets in values survive.
func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(m[s[i+2:i+2+j]])
		s = s[i+2+j+1:]
	}
}

func parsePairs(kvs []string) Var {
	m := make(Var, len(kvs))
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

// readFile parses a simple .env file with KEY=VALUE lines (no export, no quotes).
// Lines starting with # are ignored.
func readFile(path string) (Var, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	m := make(Var)
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			m[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
		}
	}
	return m, s.Err()
}
