package loadbalance

import (
	"fmt"
	"math/rand"
	"github.com/vladaeloaiei/byteremote/registry"
)

// WeightedRandomBalancer picks an instance with probability
// proportional to its ServiceInstance.Weight. Best for a mix of TCP
// (C2) and, once transport-filtered, UDP (C3) instances registered at
// different capacities behind the same service name.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("no instances available")
	}

	// Sum the weights; an instance registered with Weight 0 never wins
	// unless every candidate is 0, in which case every one is equally
	// likely.
	totalWeight := 0
	for _, v := range instances {
		totalWeight += v.Weight
	}
	if totalWeight <= 0 {
		return &instances[rand.Intn(len(instances))], nil
	}

	// Draw uniformly from [0, totalWeight) and walk the cumulative
	// weights until the draw falls inside an instance's slice.
	r := rand.Intn(totalWeight)
	for _, v := range instances {
		r -= v.Weight
		if r < 0 {
			return &v, nil
		}
	}

	return nil, fmt.Errorf("unexpected error in weighted random selection")
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
