// Package schedule evaluates cron expressions for the task scheduler.
package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure Cron implements the interface.
var _ driven.Schedule = (*Cron)(nil)

// Cron parses standard 5-field cron expressions and the @hourly/@daily/@weekly
// family. Parsed expressions are cached.
type Cron struct {
	mu    sync.Mutex
	cache map[string]*cronexpr.Expression
}

// NewCron creates a Cron.
func NewCron() *Cron {
	return &Cron{cache: make(map[string]*cronexpr.Expression)}
}

// Next returns the first activation of expr after t, in t's location.
func (c *Cron) Next(expr string, t time.Time) (time.Time, error) {
	e, err := c.parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	next := e.Next(t)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w: schedule %q never fires after %s", domain.ErrInvalidInput, expr, t.Format(time.RFC3339))
	}
	return next, nil
}

// Validate reports whether expr parses.
func (c *Cron) Validate(expr string) error {
	_, err := c.parse(expr)
	return err
}

func (c *Cron) parse(expr string) (*cronexpr.Expression, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.cache[expr]; ok {
		return e, nil
	}
	e, err := cronexpr.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", domain.ErrInvalidInput, expr, err)
	}
	c.cache[expr] = e
	return e, nil
}
