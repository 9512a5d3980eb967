package ratelimit

import (
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
)

const (
	minuteKeyLayout = "2006-01-02-15-04"
	hourKeyLayout   = "2006-01-02-15"

	defaultPerMinute = 30
	defaultPerHour   = 1000

	// DefaultBlockDuration is applied when a provider 429 message carries no
	// parseable wait time.
	DefaultBlockDuration = 5 * time.Minute
)

// Config represents outbound quota configuration against the AI provider.
type Config struct {
	PerMinute int `yaml:"per_minute" env:"RATE_LIMIT_PER_MINUTE"`
	PerHour   int `yaml:"per_hour" env:"RATE_LIMIT_PER_HOUR"`
}

func (cfg *Config) PrepareAndValidate() error {
	cfg.PerMinute = lang.Check(cfg.PerMinute, defaultPerMinute)
	cfg.PerHour = lang.Check(cfg.PerHour, defaultPerHour)
	return nil
}

// Remaining reports how many calls are left in the current windows.
type Remaining struct {
	PerMinute int `json:"per_minute"`
	PerHour   int `json:"per_hour"`
}

type bucket struct {
	count     int
	expiresAt time.Time
}

// Limiter tracks outbound request volume in calendar-aligned minute and hour
// buckets. It is process-wide shared state: every analyzer invocation mutates
// the same counters, so all operations run under one mutex to keep the
// increment-and-expire discipline atomic.
type Limiter struct {
	cfg Config
	log logze.Logger

	mu           sync.Mutex
	buckets      map[string]*bucket
	blockedUntil time.Time

	now func() time.Time
}

// New creates a limiter with the given quota configuration.
func New(cfg Config) (*Limiter, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, err
	}
	return &Limiter{
		cfg:     cfg,
		log:     logze.With("module", "ratelimit"),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}, nil
}

// CanProceed reports whether a call may be made right now. A false result is
// a normal gating signal, not an error.
func (l *Limiter) CanProceed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Before(l.blockedUntil) {
		return false
	}

	return l.count(now.Format(minuteKeyLayout)) < l.cfg.PerMinute &&
		l.count(now.Format(hourKeyLayout)) < l.cfg.PerHour
}

// RecordCall increments both window counters, one increment per accepted call.
// Expired buckets of past windows are swept here so the map stays bounded.
func (l *Limiter) RecordCall() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	l.increment(now.Format(minuteKeyLayout), now.Truncate(time.Minute).Add(time.Minute))
	l.increment(now.Format(hourKeyLayout), now.Truncate(time.Hour).Add(time.Hour))
}

// Remaining returns how many calls are left in the current minute and hour.
func (l *Limiter) Remaining() Remaining {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	return Remaining{
		PerMinute: max(0, l.cfg.PerMinute-l.count(now.Format(minuteKeyLayout))),
		PerHour:   max(0, l.cfg.PerHour-l.count(now.Format(hourKeyLayout))),
	}
}

// IsBlocked reports whether a provider-reported block is currently active.
func (l *Limiter) IsBlocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now().Before(l.blockedUntil)
}

// MarkBlocked sets the blocked flag for the given duration, typically the
// wait time suggested by a provider 429 response.
func (l *Limiter) MarkBlocked(d time.Duration) {
	if d <= 0 {
		d = DefaultBlockDuration
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.now().Add(d)
	if until.After(l.blockedUntil) {
		l.blockedUntil = until
	}
	l.log.Warn("provider rate limit active", "blocked_for", d.String())
}

// count returns the live counter for the key, dropping it if expired.
func (l *Limiter) count(key string) int {
	b, ok := l.buckets[key]
	if !ok {
		return 0
	}
	if l.now().After(b.expiresAt) {
		delete(l.buckets, key)
		return 0
	}
	return b.count
}

// sweep drops every expired bucket, not only the currently addressed ones.
func (l *Limiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.After(b.expiresAt) {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) increment(key string, expiresAt time.Time) {
	b, ok := l.buckets[key]
	if !ok || l.now().After(b.expiresAt) {
		l.buckets[key] = &bucket{count: 1, expiresAt: expiresAt}
		return
	}
	b.count++
}

var (
	waitMinutesRe = regexp.MustCompile(`try again in (\d+) minute`)
	waitSecondsRe = regexp.MustCompile(`try again in (\d+) second`)
)

// ParseWait extracts the suggested wait duration from a provider rate-limit
// message ("try again in N minute(s)/second(s)"). Unparseable messages fall
// back to DefaultBlockDuration.
func ParseWait(message string) time.Duration {
	if m := waitMinutesRe.FindStringSubmatch(message); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(n) * time.Minute
		}
	}
	if m := waitSecondsRe.FindStringSubmatch(message); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return DefaultBlockDuration
}
