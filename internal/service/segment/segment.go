package segment

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator issues recording session IDs. The sequence number is unique per
// generator and is embedded in in-progress part names.
type Generator struct {
	prefix  string
	counter uint64
}

// New creates a generator with a random prefix.
func New() *Generator {
	return NewWithPrefix(uuid.NewString()[:8])
}

// NewWithPrefix creates a generator with a fixed prefix.
func NewWithPrefix(prefix string) *Generator {
	return &Generator{prefix: prefix}
}

// Next returns the next session ID and its sequence number.
func (g *Generator) Next() (string, uint64) {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-rec-%d", g.prefix, n), n
}
