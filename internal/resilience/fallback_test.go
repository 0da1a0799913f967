package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newStringGroup(cfg FallbackConfig) *FallbackGroup[string] {
	fg := NewFallbackGroup("primary", "primary", cfg)
	fg.AddFallback("secondary", "secondary")
	return fg
}

func TestFallbackGroup_Execute(t *testing.T) {
	tests := []struct {
		name       string
		failing    map[string]bool
		wantCalled []string
		wantErr    error
	}{
		{
			name:       "primary succeeds",
			wantCalled: []string{"primary"},
		},
		{
			name:       "primary fails, secondary succeeds",
			failing:    map[string]bool{"primary": true},
			wantCalled: []string{"primary", "secondary"},
		},
		{
			name:       "all fail",
			failing:    map[string]bool{"primary": true, "secondary": true},
			wantCalled: []string{"primary", "secondary"},
			wantErr:    ErrAllFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg := newStringGroup(FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3}})
			var called []string
			err := fg.Execute(context.Background(), func(v string) error {
				called = append(called, v)
				if tt.failing[v] {
					return errTest
				}
				return nil
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil && !errors.Is(err, errTest) {
				t.Errorf("err = %v, want it to wrap the entry error", err)
			}
			if diff := cmp.Diff(tt.wantCalled, called); diff != "" {
				t.Errorf("call order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	fg := newStringGroup(FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})

	for range 2 {
		_ = fg.Execute(context.Background(), func(v string) error {
			if v == "primary" {
				return errTest
			}
			return nil
		})
	}
	if st := fg.Breaker("primary").State(); st != StateOpen {
		t.Fatalf("primary breaker = %v, want open", st)
	}

	var called []string
	err := fg.Execute(context.Background(), func(v string) error {
		called = append(called, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"secondary"}, called); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestFallbackGroup_ShouldFailoverStopsWalk(t *testing.T) {
	errAnswer := errors.New("an answer, not a failure")
	fg := newStringGroup(FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
		ShouldFailover: func(err error) bool { return !errors.Is(err, errAnswer) },
	})

	var called []string
	for range 3 {
		err := fg.Execute(context.Background(), func(v string) error {
			called = append(called, v)
			return errAnswer
		})
		if err != errAnswer {
			t.Fatalf("err = %v, want errAnswer unwrapped", err)
		}
	}
	if diff := cmp.Diff([]string{"primary", "primary", "primary"}, called); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	if st := fg.Breaker("primary").State(); st != StateClosed {
		t.Errorf("primary breaker = %v, want closed", st)
	}
}

func TestFallbackGroup_CancelledContext(t *testing.T) {
	fg := newStringGroup(FallbackConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	var called []string
	err := fg.Execute(ctx, func(v string) error {
		called = append(called, v)
		cancel()
		return errTest
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(called) != 1 {
		t.Errorf("called = %v, want only the primary", called)
	}
}

func TestFallbackGroup_Names(t *testing.T) {
	fg := newStringGroup(FallbackConfig{})
	fg.AddFallback("tertiary", "tertiary")
	if diff := cmp.Diff([]string{"primary", "secondary", "tertiary"}, fg.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	if fg.Breaker("missing") != nil {
		t.Error("Breaker(missing) should be nil")
	}
}

func TestExecuteWithResult(t *testing.T) {
	fg := NewFallbackGroup(10, "ten", FallbackConfig{})
	fg.AddFallback("twenty", 20)

	result, err := ExecuteWithResult(context.Background(), fg, func(v int) (string, error) {
		if v == 10 {
			return "", errTest
		}
		return "from-twenty", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "from-twenty" {
		t.Fatalf("result = %q, want from-twenty", result)
	}

	_, err = ExecuteWithResult(context.Background(), fg, func(int) (string, error) {
		return "", errTest
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
