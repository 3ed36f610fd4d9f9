package groutine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoCarriesName(t *testing.T) {
	names := make(chan string, 1)
	Go(nil, "worker-1", func(ctx context.Context) {
		names <- Name(ctx)
	})

	select {
	case n := <-names:
		assert.Equal(t, "worker-1", n, "goroutine MUST see its own name in ctx")
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}

func TestNameWithoutGo(t *testing.T) {
	assert.Empty(t, Name(context.Background()))
	assert.Empty(t, Name(nil)) //nolint:staticcheck
}

func TestStartReportsResult(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(ctx context.Context) error
		wantErr string
	}{
		{
			name: "success",
			fn:   func(context.Context) error { return nil },
		},
		{
			name:    "error",
			fn:      func(context.Context) error { return errors.New("boom") },
			wantErr: "boom",
		},
		{
			name:    "panic",
			fn:      func(context.Context) error { panic("kaboom") },
			wantErr: "goroutine ticker panicked: kaboom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := Start(context.Background(), "ticker", tt.fn)

			select {
			case err := <-done:
				if tt.wantErr == "" {
					require.NoError(t, err)
				} else {
					require.EqualError(t, err, tt.wantErr)
				}
			case <-time.After(time.Second):
				t.Fatal("Start did not report")
			}

			_, open := <-done
			assert.False(t, open, "result channel MUST be closed after the single result")
		})
	}
}
