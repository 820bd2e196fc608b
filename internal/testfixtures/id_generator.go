package testfixtures

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// fixtureNamespace roots every generated identifier.
var fixtureNamespace = uuid.MustParse("6f1d3c2a-8b4e-4f7a-9c3d-2e5b7a9f0c14")

// IDGenerator produces deterministic version identifiers: name-based UUIDs
// derived from a seed and a counter, so two generators with the same seed
// yield the same sequence.
type IDGenerator struct {
	mu      sync.Mutex
	seed    string
	counter uint64
}

// NewIDGenerator returns a generator for seed. An empty seed uses "fixture".
func NewIDGenerator(seed string) *IDGenerator {
	if seed == "" {
		seed = "fixture"
	}
	return &IDGenerator{seed: seed}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return uuid.NewSHA1(fixtureNamespace, []byte(g.seed+"/"+strconv.FormatUint(g.counter, 10))).String()
}

// NextFunc exposes Next for injection. A nil generator yields random UUIDs.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return uuid.NewString
	}
	return g.Next
}

// Reset rewinds the sequence.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	g.counter = 0
	g.mu.Unlock()
}
