package client

import (
	"net"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vladaeloaiei/byteremote/loadbalance"
	"github.com/vladaeloaiei/byteremote/registry"
	"github.com/vladaeloaiei/byteremote/server"
)

// staticRegistry always discovers a single, fixed instance — enough to
// exercise the discover-then-balance-then-invoke path without a real
// registry backend.
type staticRegistry struct {
	instances []registry.ServiceInstance
}

func (r *staticRegistry) Register(string, registry.ServiceInstance, int64) error  { return nil }
func (r *staticRegistry) Deregister(string, string, registry.Transport) error     { return nil }
func (r *staticRegistry) Discover(string) ([]registry.ServiceInstance, error)     { return r.instances, nil }
func (r *staticRegistry) Watch(string) <-chan []registry.ServiceInstance          { return nil }

type arith struct{}

func (arith) Add(a, b int32) (int32, error) { return a + b, nil }

func TestClientCall(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	svr := server.New(arith{}, zap.NewNop())
	go svr.ServeTCP(addr, "", "", nil)
	defer svr.Shutdown(time.Second)
	time.Sleep(50 * time.Millisecond)

	reg := &staticRegistry{instances: []registry.ServiceInstance{{Addr: addr, Transport: registry.TransportTCP}}}
	c := New(reg, &loadbalance.RoundRobinBalancer{}, 2)

	got, err := c.Call("Arith.Add", reflect.TypeOf(int32(0)), int32(1), int32(2))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if got.Interface().(int32) != 3 {
		t.Fatalf("expected 3, got %v", got.Interface())
	}

	got, err = c.Call("Arith.Add", reflect.TypeOf(int32(0)), int32(10), int32(20))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if got.Interface().(int32) != 30 {
		t.Fatalf("expected 30, got %v", got.Interface())
	}
}

// TestClientCallSkipsUDPOnlyInstance exercises the transport filter in
// Call: a discovered UDP-only instance must never be handed to the
// balancer, since Client only ever dials tcpchannel.
func TestClientCallSkipsUDPOnlyInstance(t *testing.T) {
	reg := &staticRegistry{instances: []registry.ServiceInstance{
		{Addr: "127.0.0.1:1", Transport: registry.TransportUDP},
	}}
	c := New(reg, &loadbalance.RoundRobinBalancer{}, 1)

	if _, err := c.Call("Arith.Add", reflect.TypeOf(int32(0)), int32(1), int32(2)); err == nil {
		t.Fatal("expected an error when only a UDP instance is discovered")
	}
}

func TestClientCallRejectsBadServiceMethod(t *testing.T) {
	reg := &staticRegistry{}
	c := New(reg, &loadbalance.RoundRobinBalancer{}, 1)

	if _, err := c.Call("Arith", reflect.TypeOf(int32(0))); err == nil {
		t.Fatal("expected an error for a serviceMethod without a dot")
	}
}
