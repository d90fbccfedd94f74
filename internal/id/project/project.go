// Package project names runs and disambiguates their artifacts.
package project

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/docker/docker/pkg/namesgenerator"
)

// Generator produces run names and artifact disambiguators.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Generator seeded from the runtime's random source.
func New() *Generator {
	return NewWithSource(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewWithSource returns a Generator drawing from src.
func NewWithSource(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// Name returns a human-readable run name such as "brave_turing_0427".
func (g *Generator) Name() string {
	return fmt.Sprintf("%s_%04d", namesgenerator.GetRandomName(0), g.intN(10000))
}

// Disambiguator returns a six digit number distinguishing artifacts of the same domain.
func (g *Generator) Disambiguator() string {
	return fmt.Sprintf("%06d", 100000+g.intN(900000))
}

func (g *Generator) intN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}
