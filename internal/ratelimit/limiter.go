// Package ratelimit implements fixed-window request counting per client IP on
// top of a kv.Store.
//
// Each (limiter name, ip) pair owns one record {count, firstRequest}. A window
// opens on the first request after the record is missing or stale and lasts
// Config.Window; requests beyond Config.Max inside the window are denied.
// The read-increment-write cycle is not atomic, so concurrent bursts from one
// IP may overshoot Max slightly.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/kv"
)

// ErrStore wraps every failure of the backing store. Callers are expected to
// let the request through when they see it.
var ErrStore = errors.New("ratelimit: store unavailable")

type Config struct {
	Name                   string
	Window                 time.Duration
	Max                    int
	SkipSuccessfulRequests bool
	Message                string
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one.
func (d Decision) RetryAfterSeconds() int64 {
	secs := int64(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

type record struct {
	Count        int   `json:"count"`
	FirstRequest int64 `json:"firstRequest"`
}

type Limiter struct {
	cfg   Config
	store kv.Store
	now   func() time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(cfg Config, store kv.Store, opts ...Option) *Limiter {
	l := &Limiter{cfg: cfg, store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Config() Config {
	return l.cfg
}

func (l *Limiter) Key(ip string) string {
	return "ratelimit:" + l.cfg.Name + ":" + ip
}

// Hit counts one request from ip. On store failure it returns an allowing
// Decision together with an error wrapping ErrStore.
func (l *Limiter) Hit(ctx context.Context, ip string) (Decision, error) {
	now := l.now()
	key := l.Key(ip)

	rec, err := l.load(ctx, key)
	if err != nil {
		return Decision{Allowed: true, Limit: l.cfg.Max, Remaining: l.cfg.Max}, err
	}
	if rec == nil || l.expired(rec, now) {
		rec = &record{FirstRequest: now.UnixMilli()}
	}

	resetAt := time.UnixMilli(rec.FirstRequest).Add(l.cfg.Window)
	d := Decision{
		Limit:   l.cfg.Max,
		ResetAt: resetAt,
	}

	count := rec.Count + 1
	if count > l.cfg.Max {
		d.RetryAfter = resetAt.Sub(now)
		return d, nil
	}

	rec.Count = count
	d.Allowed = true
	d.Remaining = l.cfg.Max - count
	if err := l.save(ctx, key, rec); err != nil {
		return d, err
	}
	return d, nil
}

// Undo takes back one counted request inside the current window. It is a
// no-op when the window has already rolled over.
func (l *Limiter) Undo(ctx context.Context, ip string) error {
	key := l.Key(ip)

	rec, err := l.load(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil || l.expired(rec, l.now()) || rec.Count == 0 {
		return nil
	}
	rec.Count--
	return l.save(ctx, key, rec)
}

func (l *Limiter) expired(rec *record, now time.Time) bool {
	return !now.Before(time.UnixMilli(rec.FirstRequest).Add(l.cfg.Window))
}

func (l *Limiter) load(ctx context.Context, key string) (*record, error) {
	raw, err := l.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get %s: %v", ErrStore, key, err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		// a corrupt record starts a fresh window
		return nil, nil
	}
	return &rec, nil
}

func (l *Limiter) save(ctx context.Context, key string, rec *record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStore, key, err)
	}
	if err := l.store.Put(ctx, key, raw, l.cfg.Window); err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrStore, key, err)
	}
	return nil
}
