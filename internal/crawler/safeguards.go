package crawler

import (
	"runtime/debug"
	"sync/atomic"

	"go.uber.org/zap"
)

// panicGuard recovers from a panic inside one page's processing so a
// single malformed page cannot take down a worker goroutine.
type panicGuard struct {
	logger     *zap.Logger
	panicCount atomic.Int64
}

func newPanicGuard(logger *zap.Logger) *panicGuard {
	return &panicGuard{logger: logger}
}

func (g *panicGuard) run(pageURL string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			g.panicCount.Add(1)
			g.logger.Error("recovered panic processing page",
				zap.String("url", pageURL),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	fn()
}

func (g *panicGuard) count() int64 {
	return g.panicCount.Load()
}
