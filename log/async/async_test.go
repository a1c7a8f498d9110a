package async

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/tagcache"
)

type capture struct {
	mu    sync.Mutex
	lines []string
}

func (c *capture) add(msg string) {
	c.mu.Lock()
	c.lines = append(c.lines, msg)
	c.mu.Unlock()
}

func (c *capture) Debug(msg string, _ tagcache.Fields) { c.add(msg) }
func (c *capture) Info(msg string, _ tagcache.Fields)  { c.add(msg) }
func (c *capture) Warn(msg string, _ tagcache.Fields)  { c.add(msg) }
func (c *capture) Error(msg string, _ tagcache.Fields) { c.add(msg) }

func TestDrainsQueueOnClose(t *testing.T) {
	sink := &capture{}
	l := New(sink, 2, 64)

	for i := 0; i < 10; i++ {
		l.Info("event", nil)
	}
	l.Close()

	sink.mu.Lock()
	n := len(sink.lines)
	sink.mu.Unlock()
	if n != 10 {
		t.Fatalf("delivered %d events, want 10", n)
	}
}

func TestDropsWhenFullAndAfterClose(t *testing.T) {
	blocked := make(chan struct{})
	sink := &blockingSink{release: blocked}
	l := New(sink, 1, 1)

	// 1 in the worker, 1 in the queue, rest dropped; must never block
	for i := 0; i < 50; i++ {
		l.Warn("event", nil)
	}
	close(blocked)
	l.Close()

	// logging after Close is a silent no-op
	l.Error("late", nil)
}

type blockingSink struct{ release chan struct{} }

func (s *blockingSink) Debug(string, tagcache.Fields) { <-s.release }
func (s *blockingSink) Info(string, tagcache.Fields)  { <-s.release }
func (s *blockingSink) Warn(string, tagcache.Fields)  { <-s.release }
func (s *blockingSink) Error(string, tagcache.Fields) { <-s.release }
