package transport

import (
	"bytes"
	"testing"

	"github.com/vladaeloaiei/byteremote/dispatcher"
	"github.com/vladaeloaiei/byteremote/invoker"
)

type loopChannel struct {
	d     *dispatcher.Dispatcher
	reply []byte
}

func (c *loopChannel) Send(payload []byte) error {
	resp, err := c.d.Dispatch(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if resp.Void {
		c.reply = nil
		return nil
	}
	c.reply = []byte("encoded")
	return nil
}

func (c *loopChannel) Receive() ([]byte, error) {
	return c.reply, nil
}

type echoTarget struct{}

func (echoTarget) Ping() error { return nil }

func TestInvokerPoolGrowsUpToMaxSize(t *testing.T) {
	d := dispatcher.New(echoTarget{})
	made := 0
	pool := NewInvokerPool("test-addr", 2, func() (*invoker.Invoker, error) {
		made++
		return invoker.New(&loopChannel{d: d}), nil
	})

	first, err := pool.Get()
	if err != nil {
		t.Fatalf("first get failed: %v", err)
	}
	second, err := pool.Get()
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if made != 2 {
		t.Fatalf("expected 2 invokers created, got %d", made)
	}

	pool.Put(first)
	pool.Put(second)

	third, err := pool.Get()
	if err != nil {
		t.Fatalf("third get failed: %v", err)
	}
	if made != 2 {
		t.Fatalf("expected reuse from the pool, but a 3rd invoker was created")
	}
	pool.Put(third)
}

func TestInvokerPoolExhaustedBlocksUntilPut(t *testing.T) {
	d := dispatcher.New(echoTarget{})
	pool := NewInvokerPool("test-addr", 1, func() (*invoker.Invoker, error) {
		return invoker.New(&loopChannel{d: d}), nil
	})

	pi, err := pool.Get()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		pi2, err := pool.Get()
		if err != nil {
			t.Errorf("blocked get failed: %v", err)
		}
		pool.Put(pi2)
		close(done)
	}()

	pool.Put(pi)
	<-done
}
