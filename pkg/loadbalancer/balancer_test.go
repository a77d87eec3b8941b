package loadbalancer

import "testing"

func TestNextServerRoundRobin(t *testing.T) {
	lb := NewLoadBalancer([]string{"http://a:1", "http://b:2", "http://c:3"})
	want := []string{"http://a:1", "http://b:2", "http://c:3", "http://a:1", "http://b:2"}
	for i, w := range want {
		if got := lb.NextServer(); got != w {
			t.Errorf("call %d: got %q, want %q", i, got, w)
		}
	}
	if lb.Size() != 3 {
		t.Errorf("Size() = %d, want 3", lb.Size())
	}
}

func TestNextServerEmpty(t *testing.T) {
	lb := NewLoadBalancer(nil)
	if got := lb.NextServer(); got != "" {
		t.Errorf("NextServer() on empty balancer = %q, want empty", got)
	}
	if lb.Size() != 0 {
		t.Errorf("Size() = %d, want 0", lb.Size())
	}
}
