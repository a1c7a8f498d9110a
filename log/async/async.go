// Package async decorates a tagcache Logger with a buffered worker pool so
// a slow sink (remote shipper, blocking writer) never stalls cache hot
// paths. Events are dropped, not queued unboundedly, when the buffer is
// full.
//
//	raw := zaplog.New(l)
//	sink := async.New(raw, 1, 1000) // 1 worker; queue of 1000 events
//	defer sink.Close()
package async

import (
	"sync"

	"github.com/unkn0wn-root/tagcache"
)

type Logger struct {
	inner tagcache.Logger
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ tagcache.Logger = (*Logger)(nil)

func New(inner tagcache.Logger, workers, qlen int) *Logger {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 256
	}
	l := &Logger{inner: inner, q: make(chan func(), qlen)}
	l.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer l.wg.Done()
			for fn := range l.q {
				fn()
			}
		}()
	}
	return l
}

// Close stops accepting events and waits for the queue to drain.
func (l *Logger) Close() {
	l.once.Do(func() {
		close(l.q)
		l.wg.Wait()
	})
}

func (l *Logger) enqueue(fn func()) {
	defer func() {
		// sending on the closed queue after Close: drop the event
		_ = recover()
	}()
	select {
	case l.q <- fn:
	default: // full; drop rather than block
	}
}

func (l *Logger) Debug(msg string, f tagcache.Fields) {
	l.enqueue(func() { l.inner.Debug(msg, f) })
}
func (l *Logger) Info(msg string, f tagcache.Fields) {
	l.enqueue(func() { l.inner.Info(msg, f) })
}
func (l *Logger) Warn(msg string, f tagcache.Fields) {
	l.enqueue(func() { l.inner.Warn(msg, f) })
}
func (l *Logger) Error(msg string, f tagcache.Fields) {
	l.enqueue(func() { l.inner.Error(msg, f) })
}
