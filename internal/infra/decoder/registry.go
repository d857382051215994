// Package decoder keeps the set of frame source backends compiled into the
// binary. Backends register themselves from an init function, the way
// database/sql drivers do.
package decoder

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"go.uber.org/zap"
)

// Constructor builds a backend's opener.
type Constructor func(logger *zap.Logger) port.SourceOpener

var (
	mu       sync.RWMutex
	backends = map[string]Constructor{}
)

// Register makes a backend available under name. It panics when called twice
// with the same name.
func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if ctor == nil {
		panic("decoder: Register constructor is nil")
	}
	if _, dup := backends[name]; dup {
		panic("decoder: Register called twice for " + name)
	}
	backends[name] = ctor
}

// Open returns the opener registered under name.
func Open(name string, logger *zap.Logger) (port.SourceOpener, error) {
	mu.RLock()
	ctor, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown frame decoder %q (available: %v)", name, Backends())
	}
	return ctor(logger), nil
}

func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
