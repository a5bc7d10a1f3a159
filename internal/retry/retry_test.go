package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/requestarr/requestarr/internal/testutil"
)

func fastPolicy() Policy {
	return Policy{
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		MaxAttempts:  3,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastPolicy(), func() error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp 127.0.0.1:80: connection refused")
		}
		return nil
	}, testutil.NopLogger())

	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_NonNetworkErrorFailsImmediately(t *testing.T) {
	calls := 0
	wantErr := errors.New("invalid API key")
	err := Do(context.Background(), "op", fastPolicy(), func() error {
		calls++
		return wantErr
	}, testutil.NopLogger())

	if !errors.Is(err, wantErr) {
		t.Fatalf("Do() error = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastPolicy(), func() error {
		calls++
		return errors.New("i/o timeout")
	}, testutil.NopLogger())

	if err == nil {
		t.Fatal("Do() error = nil, want error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, "op", fastPolicy(), func() error {
		return errors.New("connection reset")
	}, testutil.NopLogger())

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error = %v, want context.Canceled", err)
	}
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"dns failure", errors.New("no such host"), true},
		{"timeout", errors.New("context deadline exceeded (Client.Timeout exceeded)"), true},
		{"api rejection", errors.New("status 401"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNetworkError(tt.err); got != tt.want {
				t.Errorf("IsNetworkError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
