package loadbalancer

import (
	"sync"
)

// LoadBalancer rotates round-robin over a set of upstream base URLs. The
// gateway uses one per proxied service so a service can be scaled to
// several replicas without config changes elsewhere.
type LoadBalancer struct {
	servers []string
	mu      sync.Mutex
	current int
}

func NewLoadBalancer(servers []string) *LoadBalancer {
	return &LoadBalancer{servers: servers}
}

// NextServer returns the next upstream in rotation. Empty string when the
// balancer has no servers.
func (lb *LoadBalancer) NextServer() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if len(lb.servers) == 0 {
		return ""
	}
	server := lb.servers[lb.current]
	lb.current = (lb.current + 1) % len(lb.servers)
	return server
}

// Size reports how many upstreams are in rotation.
func (lb *LoadBalancer) Size() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return len(lb.servers)
}
