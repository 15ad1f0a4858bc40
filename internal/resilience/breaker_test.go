package resilience

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for breaker timing.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errUnreachable = errors.New("scorer unreachable")

func TestBreakerInitialState(t *testing.T) {
	b := New(DefaultConfig("scorer"))
	if b.State() != Closed {
		t.Errorf("initial state = %v, want Closed", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() = %v, want nil", err)
	}
}

// step is one call through the breaker: advance the clock, then run a call that
// fails or succeeds, and check the returned error and resulting state.
type step struct {
	advance time.Duration
	fail    bool
	wantErr error
	want    State
}

func TestBreakerStateMachine(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		steps    []step
		wantHook string
	}{
		{
			name: "opens at threshold",
			cfg:  Config{Threshold: 3, ResetTimeout: time.Minute, HalfOpenSuccesses: 1},
			steps: []step{
				{fail: true, wantErr: errUnreachable, want: Closed},
				{fail: true, wantErr: errUnreachable, want: Closed},
				{fail: true, wantErr: errUnreachable, want: Open},
				{wantErr: ErrOpen, want: Open},
			},
			wantHook: "closed->open",
		},
		{
			name: "stays open until the reset timeout",
			cfg:  Config{Threshold: 1, ResetTimeout: time.Minute, HalfOpenSuccesses: 1},
			steps: []step{
				{fail: true, wantErr: errUnreachable, want: Open},
				{advance: 59 * time.Second, wantErr: ErrOpen, want: Open},
				{advance: 2 * time.Second, want: Closed},
			},
			wantHook: "closed->open open->half-open half-open->closed",
		},
		{
			name: "half-open needs every trial to succeed",
			cfg:  Config{Threshold: 1, ResetTimeout: time.Minute, HalfOpenSuccesses: 3},
			steps: []step{
				{fail: true, wantErr: errUnreachable, want: Open},
				{advance: 2 * time.Minute, want: HalfOpen},
				{want: HalfOpen},
				{want: Closed},
			},
			wantHook: "closed->open open->half-open half-open->closed",
		},
		{
			name: "failed trial reopens and restarts the timeout",
			cfg:  Config{Threshold: 1, ResetTimeout: time.Minute, HalfOpenSuccesses: 2},
			steps: []step{
				{fail: true, wantErr: errUnreachable, want: Open},
				{advance: 2 * time.Minute, want: HalfOpen},
				{fail: true, wantErr: errUnreachable, want: Open},
				{advance: 30 * time.Second, wantErr: ErrOpen, want: Open},
				{advance: 31 * time.Second, want: HalfOpen},
				{want: Closed},
			},
			wantHook: "closed->open open->half-open half-open->open open->half-open half-open->closed",
		},
		{
			name: "success clears the failure count",
			cfg:  Config{Threshold: 3, ResetTimeout: time.Minute, HalfOpenSuccesses: 1},
			steps: []step{
				{fail: true, wantErr: errUnreachable, want: Closed},
				{fail: true, wantErr: errUnreachable, want: Closed},
				{want: Closed},
				{fail: true, wantErr: errUnreachable, want: Closed},
				{fail: true, wantErr: errUnreachable, want: Closed},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			tt.cfg.Now = clock.Now

			var hook []string
			b := New(tt.cfg).WithHook(func(from, to State) {
				hook = append(hook, from.String()+"->"+to.String())
			})

			for i, s := range tt.steps {
				clock.Advance(s.advance)
				err := b.Execute(func() error {
					if s.fail {
						return errUnreachable
					}
					return nil
				})
				if !errors.Is(err, s.wantErr) {
					t.Fatalf("step %d: Execute() = %v, want %v", i, err, s.wantErr)
				}
				if b.State() != s.want {
					t.Fatalf("step %d: state = %v, want %v", i, b.State(), s.want)
				}
			}

			if got := strings.Join(hook, " "); got != tt.wantHook {
				t.Errorf("transitions = %q, want %q", got, tt.wantHook)
			}
		})
	}
}

func TestBreakerReset(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})
	b.Failure()

	if b.State() != Open {
		t.Fatal("expected open state")
	}

	b.Reset()

	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() after Reset = %v, want nil", err)
	}
}

func TestBreakerExecuteWithResult(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: time.Hour})

	overall, err := ExecuteWithResult(b, func() (int, error) { return 42, nil })
	if err != nil || overall != 42 {
		t.Errorf("ExecuteWithResult = (%d, %v), want (42, nil)", overall, err)
	}

	overall, err = ExecuteWithResult(b, func() (int, error) { return 7, errUnreachable })
	if !errors.Is(err, errUnreachable) || overall != 0 {
		t.Errorf("ExecuteWithResult = (%d, %v), want (0, %v)", overall, err, errUnreachable)
	}

	_, err = ExecuteWithResult(b, func() (int, error) {
		t.Error("open breaker ran the call")
		return 0, nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("ExecuteWithResult while open = %v, want ErrOpen", err)
	}
}

func TestBreakerConcurrentSafety(t *testing.T) {
	b := New(Config{Threshold: 100, ResetTimeout: time.Second, HalfOpenSuccesses: 10})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(func() error {
				if i%2 == 0 {
					return nil
				}
				return errUnreachable
			})
		}()
	}
	wg.Wait()

	if s := b.State(); s > HalfOpen {
		t.Errorf("state = %d, not a valid State", s)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half-open"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %d, want %d", cfg.Threshold, DefaultThreshold)
	}
	if cfg.ResetTimeout != DefaultResetTimeout {
		t.Errorf("ResetTimeout = %v, want %v", cfg.ResetTimeout, DefaultResetTimeout)
	}
	if cfg.HalfOpenSuccesses != DefaultHalfOpenSuccesses {
		t.Errorf("HalfOpenSuccesses = %d, want %d", cfg.HalfOpenSuccesses, DefaultHalfOpenSuccesses)
	}
	if cfg.IsFailure == nil || !cfg.IsFailure(errors.New("x")) {
		t.Error("default IsFailure should count every error")
	}
	if cfg.Now == nil {
		t.Error("default clock should be set")
	}
	if named := DefaultConfig("scorer"); named.Name != "scorer" {
		t.Errorf("DefaultConfig name = %q", named.Name)
	}
}

func TestBreakerIgnoresNonFailures(t *testing.T) {
	badImage := errors.New("bad image")
	b := New(Config{
		Threshold:    1,
		ResetTimeout: time.Hour,
		IsFailure:    func(err error) bool { return !errors.Is(err, badImage) },
	})

	for i := 0; i < 5; i++ {
		if err := b.Execute(func() error { return badImage }); err != badImage {
			t.Fatalf("Execute() = %v, want %v", err, badImage)
		}
	}
	if b.State() != Closed {
		t.Errorf("state = %v, want Closed after caller errors", b.State())
	}

	if err := b.Execute(func() error { return errUnreachable }); err == nil || b.State() != Open {
		t.Errorf("state = %v, want Open after a counted failure", b.State())
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("Execute() while open = %v, want ErrOpen", err)
	}
}
