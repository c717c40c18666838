package test

import (
	"bytes"
	"net"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vladaeloaiei/byteremote/client"
	"github.com/vladaeloaiei/byteremote/codec"
	"github.com/vladaeloaiei/byteremote/loadbalance"
	"github.com/vladaeloaiei/byteremote/server"
)

func setupServerAndClient(b *testing.B, addr string) (*server.Server, *client.Client) {
	svr := server.New(arith{}, zap.NewNop())
	reg := newMockRegistry()
	go svr.ServeTCP(addr, "Arith", addr, reg)
	time.Sleep(100 * time.Millisecond)

	cli := client.New(reg, &loadbalance.RoundRobinBalancer{}, 8)
	return svr, cli
}

// BenchmarkSerialCall measures single-goroutine, serial call throughput.
func BenchmarkSerialCall(b *testing.B) {
	addr := freeTCPAddrB(b)
	svr, cli := setupServerAndClient(b, addr)
	b.Cleanup(func() { svr.Shutdown(3 * time.Second) })

	retType := reflect.TypeOf(int32(0))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := cli.Call("Arith.Add", retType, int32(1), int32(2)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkConcurrentCall measures throughput across many goroutines
// sharing one pooled client, to probe contention on the invoker pool.
func BenchmarkConcurrentCall(b *testing.B) {
	addr := freeTCPAddrB(b)
	svr, cli := setupServerAndClient(b, addr)
	b.Cleanup(func() { svr.Shutdown(3 * time.Second) })

	retType := reflect.TypeOf(int32(0))
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := cli.Call("Arith.Add", retType, int32(1), int32(2)); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// BenchmarkCodecBinary measures pure codec throughput, off the network.
func BenchmarkCodecBinary(b *testing.B) {
	bc := &codec.BinaryCodec{}
	v := reflect.ValueOf(int32(42))
	t := v.Type()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		if err := bc.Encode(&buf, v); err != nil {
			b.Fatal(err)
		}
		if _, err := bc.Decode(&buf, t); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCodecJSON measures the JSON fallback codec for comparison.
func BenchmarkCodecJSON(b *testing.B) {
	jc := &codec.JSONCodec{}
	v := reflect.ValueOf(int32(42))
	t := v.Type()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		if err := jc.Encode(&buf, v); err != nil {
			b.Fatal(err)
		}
		if _, err := jc.Decode(&buf, t); err != nil {
			b.Fatal(err)
		}
	}
}

func freeTCPAddrB(b *testing.B) string {
	b.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		b.Fatalf("listen failed: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}
