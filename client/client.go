// Package client resolves a service name through a registry, picks a
// backing instance with a load balancer, and invokes its operations
// over a pooled invoker per address.
package client

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/vladaeloaiei/byteremote/invoker"
	"github.com/vladaeloaiei/byteremote/loadbalance"
	"github.com/vladaeloaiei/byteremote/registry"
	"github.com/vladaeloaiei/byteremote/tcpchannel"
	"github.com/vladaeloaiei/byteremote/transport"
)

// Client is the caller-facing entry point: one Client serves calls to
// any number of services, each load-balanced across its own discovered
// instances.
type Client struct {
	registry registry.Registry
	balancer loadbalance.Balancer
	poolSize int

	mu    sync.Mutex
	pools map[string]*transport.InvokerPool
}

// New builds a Client. poolSize is the max number of pooled invokers
// kept open per backing address.
func New(reg registry.Registry, bal loadbalance.Balancer, poolSize int) *Client {
	return &Client{
		registry: reg,
		balancer: bal,
		poolSize: poolSize,
		pools:    make(map[string]*transport.InvokerPool),
	}
}

// poolFor returns the InvokerPool for addr, creating one lazily.
func (c *Client) poolFor(addr string) *transport.InvokerPool {
	c.mu.Lock()
	defer c.mu.Unlock()

	pool, ok := c.pools[addr]
	if !ok {
		pool = transport.NewInvokerPool(addr, c.poolSize, func() (*invoker.Invoker, error) {
			ch, err := tcpchannel.Dial(addr)
			if err != nil {
				return nil, err
			}
			return invoker.New(ch), nil
		})
		c.pools[addr] = pool
	}
	return pool
}

// Call resolves serviceMethod ("Service.Operation") against the
// registry, picks a backing instance via the load balancer, and
// invokes operation with args. returnType is nil for a Void operation.
func (c *Client) Call(serviceMethod string, returnType reflect.Type, args ...any) (reflect.Value, error) {
	parts := strings.SplitN(serviceMethod, ".", 2)
	if len(parts) != 2 {
		return reflect.Value{}, fmt.Errorf("client: invalid serviceMethod %q", serviceMethod)
	}
	serviceName, operation := parts[0], parts[1]

	instances, err := c.registry.Discover(serviceName)
	if err != nil {
		return reflect.Value{}, err
	}

	// Client only ever dials tcpchannel; a discovered UDP-only instance
	// would otherwise be just as likely to be balanced to as a TCP one.
	instances = loadbalance.FilterTransport(instances, registry.TransportTCP)

	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return reflect.Value{}, err
	}

	pool := c.poolFor(instance.Addr)
	pi, err := pool.Get()
	if err != nil {
		return reflect.Value{}, err
	}

	result, err := pi.Invoke(returnType, operation, args...)
	if err != nil {
		pi.MarkUnusable()
	}
	pool.Put(pi)

	return result, err
}
