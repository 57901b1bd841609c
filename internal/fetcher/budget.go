package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// defaultRequestAllowance matches GitHub's authenticated REST quota per hour.
const defaultRequestAllowance = 5000

// RequestBudget tracks the GitHub REST rate budget shared by every fetch in a
// run. It is fed from response headers and never makes a caller wait: while
// the budget is exhausted or a Retry-After cooldown is active, Acquire fails
// with a *BudgetError and the record is enriched without that part.
type RequestBudget struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	cooldown  time.Time
	now       func() time.Time
}

// BudgetError reports that no request may be made before Until.
type BudgetError struct {
	Until    time.Time
	Cooldown bool
}

func (e *BudgetError) Error() string {
	if e.Cooldown {
		return fmt.Sprintf("github asked to retry after %s", e.Until.Format(time.RFC3339))
	}
	return fmt.Sprintf("github request budget exhausted until %s", e.Until.Format(time.RFC3339))
}

func NewRequestBudget() *RequestBudget {
	return &RequestBudget{
		remaining: defaultRequestAllowance,
		reset:     time.Now().Add(time.Hour),
		now:       time.Now,
	}
}

func (b *RequestBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// ResetAt returns when GitHub last said the budget would refill.
func (b *RequestBudget) ResetAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reset
}

// ResumeAt returns when requests are allowed again, or the zero time if
// they are allowed now.
func (b *RequestBudget) ResumeAt() time.Time {
	if b == nil {
		return time.Time{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.blocked(b.now()); err != nil {
		return err.Until
	}
	return time.Time{}
}

// Acquire takes one request from the budget or fails immediately.
func (b *RequestBudget) Acquire(ctx context.Context) error {
	if ctx == nil {
		return errors.New("acquire: nil context")
	}
	if b == nil || b.now == nil {
		return errors.New("acquire: budget not initialized (use NewRequestBudget)")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.blocked(b.now()); err != nil {
		return err
	}
	if b.remaining > 0 {
		b.remaining--
	}
	return nil
}

// blocked is called with mu held. Once the reset time has passed, requests go
// through uncounted until a response reports the new window.
func (b *RequestBudget) blocked(now time.Time) *BudgetError {
	switch {
	case now.Before(b.cooldown):
		return &BudgetError{Until: b.cooldown, Cooldown: true}
	case b.remaining <= 0 && now.Before(b.reset):
		return &BudgetError{Until: b.reset}
	}
	return nil
}

// UpdateFromResponse applies X-RateLimit-Remaining, X-RateLimit-Reset and
// Retry-After from a GitHub response. Malformed headers are ignored.
func (b *RequestBudget) UpdateFromResponse(resp *http.Response) {
	if b == nil || resp == nil || b.now == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if secs, ok := positiveInt(resp.Header.Get("Retry-After")); ok {
		until := b.now().Add(time.Duration(secs) * time.Second)
		if until.After(b.cooldown) {
			b.cooldown = until
		}
	}
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			b.remaining = n
		}
	}
	if epoch, ok := positiveInt(resp.Header.Get("X-RateLimit-Reset")); ok {
		b.reset = time.Unix(int64(epoch), 0)
	}
}

func positiveInt(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
