// Package ratelimit bounds how many generative requests one run may
// spend. Summary regeneration retries draw from the same budget, so a
// misbehaving generator cannot burn quota without limit.
package ratelimit

import (
	"fmt"
	"sync"

	"github.com/deusflow/newsbot/internal/logger"
)

type Budget struct {
	mu   sync.Mutex
	used int
	max  int // 0 = unlimited
}

func NewBudget(max int) *Budget {
	return &Budget{max: max}
}

// Use consumes one request from the budget, or reports exhaustion.
func (b *Budget) Use() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.used >= b.max {
		return fmt.Errorf("summary request budget exhausted (%d/%d)", b.used, b.max)
	}
	b.used++
	logger.Debug("summary request budget", "used", b.used, "max", b.max)
	return nil
}

func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max <= 0 {
		return -1
	}
	return b.max - b.used
}
