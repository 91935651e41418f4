package safego

import (
	"go.uber.org/zap"
)

// Go launches a goroutine with panic recovery.
// A panic is logged with its stack and the goroutine exits instead of
// taking the process down.
//
//	safego.Go(logger, "http-listener", func() {
//	    _ = srv.ListenAndServe()
//	})
func Go(logger *zap.Logger, name string, fn func()) {
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Recover logs a recovered panic. It must be called directly via defer.
func Recover(logger *zap.Logger, name string) {
	if r := recover(); r != nil {
		logger.Error("Goroutine panicked",
			zap.String("goroutine", name),
			zap.Any("panic", r),
			zap.Stack("stack"),
		)
	}
}
