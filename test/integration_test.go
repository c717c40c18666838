package test

import (
	"errors"
	"net"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vladaeloaiei/byteremote/client"
	"github.com/vladaeloaiei/byteremote/loadbalance"
	"github.com/vladaeloaiei/byteremote/middleware"
	"github.com/vladaeloaiei/byteremote/registry"
	"github.com/vladaeloaiei/byteremote/rpcerr"
	"github.com/vladaeloaiei/byteremote/server"
)

type arith struct{}

func (arith) Add(a, b int32) (int32, error)      { return a + b, nil }
func (arith) Multiply(a, b int32) (int32, error) { return a * b, nil }
func (arith) Echo(s string) (string, error)      { return s, nil }

// mockRegistry is an in-memory, etcd-free Registry used to exercise
// the full client -> registry -> balancer -> transport -> server chain
// without a live etcd cluster.
type mockRegistry struct {
	instances map[string][]registry.ServiceInstance
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{instances: make(map[string][]registry.ServiceInstance)}
}

func (m *mockRegistry) Register(serviceName string, inst registry.ServiceInstance, ttl int64) error {
	m.instances[serviceName] = append(m.instances[serviceName], inst)
	return nil
}

func (m *mockRegistry) Deregister(serviceName, addr string, transport registry.Transport) error {
	insts := m.instances[serviceName]
	for i, inst := range insts {
		if inst.Addr == addr && inst.Transport == transport {
			m.instances[serviceName] = append(insts[:i], insts[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockRegistry) Discover(serviceName string) ([]registry.ServiceInstance, error) {
	return m.instances[serviceName], nil
}

func (m *mockRegistry) Watch(string) <-chan []registry.ServiceInstance { return nil }

func freeTCPAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// TestFullIntegration exercises client -> registry -> balancer ->
// pooled invoker -> TCP channel -> dispatcher -> middleware -> server.
func TestFullIntegration(t *testing.T) {
	addr := freeTCPAddr(t)

	svr := server.New(arith{}, zap.NewNop())
	svr.Use(middleware.LoggingMiddleware(zap.NewNop()))

	reg := newMockRegistry()
	go svr.ServeTCP(addr, "Arith", addr, reg)
	defer svr.Shutdown(3 * time.Second)
	time.Sleep(100 * time.Millisecond)

	cli := client.New(reg, &loadbalance.RoundRobinBalancer{}, 4)

	got, err := cli.Call("Arith.Add", reflect.TypeOf(int32(0)), int32(3), int32(5))
	if err != nil {
		t.Fatalf("Call Add failed: %v", err)
	}
	if got.Interface().(int32) != 8 {
		t.Fatalf("Add: expect 8, got %v", got.Interface())
	}

	got, err = cli.Call("Arith.Multiply", reflect.TypeOf(int32(0)), int32(4), int32(6))
	if err != nil {
		t.Fatalf("Call Multiply failed: %v", err)
	}
	if got.Interface().(int32) != 24 {
		t.Fatalf("Multiply: expect 24, got %v", got.Interface())
	}
}

// TestMultiServerLoadBalanced registers two server instances behind one
// service name and drives enough calls to exercise both.
func TestMultiServerLoadBalanced(t *testing.T) {
	addr1, addr2 := freeTCPAddr(t), freeTCPAddr(t)

	svr1 := server.New(arith{}, zap.NewNop())
	svr2 := server.New(arith{}, zap.NewNop())

	reg := newMockRegistry()
	go svr1.ServeTCP(addr1, "Arith", addr1, reg)
	go svr2.ServeTCP(addr2, "Arith", addr2, reg)
	defer svr1.Shutdown(3 * time.Second)
	defer svr2.Shutdown(3 * time.Second)
	time.Sleep(100 * time.Millisecond)

	cli := client.New(reg, &loadbalance.RoundRobinBalancer{}, 4)

	for i := int32(1); i <= 10; i++ {
		got, err := cli.Call("Arith.Add", reflect.TypeOf(int32(0)), i, i*10)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if want := i + i*10; got.Interface().(int32) != want {
			t.Fatalf("request %d: expect %d, got %v", i, want, got.Interface())
		}
	}
}

// TestUnknownOperationSurfacesChannelClosed drives end-to-end scenario
// 6: the server silently drops an unknown operation instead of
// replying, and the caller's blocked receive only unblocks, with
// ErrChannelClosed, once the server shuts the connection down.
func TestUnknownOperationSurfacesChannelClosed(t *testing.T) {
	addr := freeTCPAddr(t)

	svr := server.New(arith{}, zap.NewNop())
	reg := newMockRegistry()
	go svr.ServeTCP(addr, "Arith", addr, reg)
	time.Sleep(100 * time.Millisecond)

	cli := client.New(reg, &loadbalance.RoundRobinBalancer{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := cli.Call("Arith.Nope", reflect.TypeOf(int32(0)))
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	if err := svr.Shutdown(3 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, rpcerr.ErrChannelClosed) {
			t.Fatalf("expected ErrChannelClosed, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("call did not unblock after server shutdown")
	}
}
