package groutine

import (
	"context"
	"fmt"
	"runtime/pprof"
)

type ctxKey string

const nameKey ctxKey = "groutine_name"

// Go starts fn in a goroutine labelled name for pprof.
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	go pprof.Do(parentCtx, pprof.Labels("groutine", name), func(ctx context.Context) {
		fn(context.WithValue(ctx, nameKey, name))
	})
}

// Start runs fn like Go and returns a channel that receives its result once.
// A panic in fn is recovered and reported as an error naming the goroutine.
func Start(parentCtx context.Context, name string, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	Go(parentCtx, name, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("goroutine %s panicked: %v", name, r)
			}
			close(done)
		}()
		done <- fn(ctx)
	})
	return done
}

// Name returns the goroutine name carried by ctx, or "" when ctx was not
// created by Go.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(nameKey).(string); ok {
		return s
	}
	return ""
}
