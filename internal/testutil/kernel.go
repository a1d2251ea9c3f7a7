package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/graphite/internal/engine"
)

// SettleTimeout bounds how long Settle waits for effects.
const SettleTimeout = 5 * time.Second

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewKernel creates a kernel with deterministic trigger ids ("t-1", "t-2",
// ...) and a silent logger. Options given are applied afterwards, so they
// may override either. The kernel is closed when the test ends.
func NewKernel(t testing.TB, opts ...engine.KernelOption) *engine.Kernel {
	t.Helper()
	base := []engine.KernelOption{
		engine.WithTriggerIDs(engine.NewSequenceGenerator("t")),
		engine.WithLogger(DiscardLogger()),
	}
	k := engine.New(append(base, opts...)...)
	t.Cleanup(func() { _ = k.Close() })
	return k
}

// Settle waits until k has no queued launches and no running effects.
func Settle(t testing.TB, k *engine.Kernel) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), SettleTimeout)
	defer cancel()
	require.NoError(t, k.Settled(ctx), "kernel did not settle")
}
