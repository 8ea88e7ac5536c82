// Package maxprocs aligns GOMAXPROCS with the container CPU quota, so
// that autodetected worker counts match the CPUs the process can
// actually use.
package maxprocs

import (
	"context"
	"fmt"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/utracetools/frametree/pkg/xlog"
)

// Adjust applies the quota. Failure keeps the runtime default, which is
// only ever too large inside a limited cgroup.
func Adjust(ctx context.Context, l xlog.Logger) {
	_, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		l.Debug(ctx, fmt.Sprintf(format, args...))
	}))
	if err != nil {
		l.Warn(ctx, "failed to adjust GOMAXPROCS", zap.Error(err))
	}
}
