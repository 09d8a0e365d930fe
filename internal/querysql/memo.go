package querysql

import (
	"slices"
	"sync"

	"github.com/roach88/sqlcompile/internal/ir"
	"github.com/roach88/sqlcompile/internal/queryir"
)

// Memo caches compiled fragments by exact request fingerprint.
//
// Compilation is deterministic, so a fingerprint hit returns exactly what a
// fresh compile would. Errors are not cached.
type Memo struct {
	compiler *SQLCompiler

	mu      sync.RWMutex
	entries map[string]Fragment
	hits    int
	misses  int
}

// NewMemo wraps c with a fragment cache.
func NewMemo(c *SQLCompiler) *Memo {
	return &Memo{
		compiler: c,
		entries:  make(map[string]Fragment),
	}
}

// CompileQuery returns the cached fragment for q, compiling on a miss.
func (m *Memo) CompileQuery(q queryir.Query) (Fragment, error) {
	key, err := queryir.ExactFingerprint(q)
	if err != nil {
		return m.compiler.CompileQuery(q)
	}

	m.mu.RLock()
	f, ok := m.entries[key]
	m.mu.RUnlock()
	if ok {
		m.mu.Lock()
		m.hits++
		m.mu.Unlock()
		return cloneFragment(f), nil
	}

	f, err = m.compiler.CompileQuery(q)
	if err != nil {
		return Fragment{}, err
	}

	m.mu.Lock()
	m.misses++
	m.entries[key] = f
	m.mu.Unlock()
	return cloneFragment(f), nil
}

// Stats returns cache hits and misses.
func (m *Memo) Stats() (hits, misses int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits, m.misses
}

// Len returns the number of cached fragments.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// cloneFragment copies f deeply enough that callers may mutate the
// returned params, including Bytes contents.
func cloneFragment(f Fragment) Fragment {
	params := slices.Clone(f.Params)
	for i, p := range params {
		if b, ok := p.(ir.Bytes); ok {
			params[i] = ir.Bytes(slices.Clone([]byte(b)))
		}
	}
	return Fragment{SQL: f.SQL, Params: params}
}
