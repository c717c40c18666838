// Package loadbalance provides load balancing strategies for distributing
// RPC requests across multiple service instances.
//
// Three strategies are implemented:
//   - RoundRobin:      Stateless services, equal-capacity instances
//   - WeightedRandom:  Heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  Stateful services requiring cache affinity
package loadbalance

import "github.com/vladaeloaiei/byteremote/registry"

// Balancer is the interface for load balancing strategies.
// The client calls Pick() before each RPC to select a target instance.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Called on every RPC call — must be goroutine-safe.
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// FilterTransport returns the subset of instances that speak the given
// transport. A discovered list can legitimately mix TCP (C2) and UDP
// (C3) instances under one service name; callers pick a transport
// before a Balancer ever sees the list, so Pick never has to reason
// about which channel kind an instance needs.
func FilterTransport(instances []registry.ServiceInstance, transport registry.Transport) []registry.ServiceInstance {
	out := make([]registry.ServiceInstance, 0, len(instances))
	for _, inst := range instances {
		if inst.Transport == transport {
			out = append(out, inst)
		}
	}
	return out
}
