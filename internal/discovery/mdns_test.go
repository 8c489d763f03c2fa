// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests manager setup and service entry parsing
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{
		InstanceName: "desk",
		Port:         9717,
		Version:      "1.0.0",
	})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	mgr.Stop()
}

func TestTXT(t *testing.T) {
	mgr := NewManager(Config{Version: "1.2.3"})
	defer mgr.Stop()

	txt := mgr.TXT()
	want := map[string]bool{"path=/state": false, "ws=/ws": false, "version=1.2.3": false}
	for _, field := range txt {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected TXT record %q", field)
		}
	}
}

func TestFromEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry *mdns.ServiceEntry
		want  Instance
		ok    bool
	}{
		{
			name: "ipv4 entry",
			entry: &mdns.ServiceEntry{
				Name:       "desk._vigour._tcp.local.",
				AddrV4:     net.ParseIP("192.168.1.20"),
				Port:       9717,
				InfoFields: []string{"path=/state", "version=0.3.0"},
			},
			want: Instance{Name: "desk", Host: "192.168.1.20", Port: 9717, Version: "0.3.0"},
			ok:   true,
		},
		{
			name: "host fallback",
			entry: &mdns.ServiceEntry{
				Name: "laptop._vigour._tcp.local.",
				Host: "laptop.local.",
				Port: 80,
			},
			want: Instance{Name: "laptop", Host: "laptop.local", Port: 80},
			ok:   true,
		},
		{
			name:  "other service",
			entry: &mdns.ServiceEntry{Name: "printer._ipp._tcp.local."},
			ok:    false,
		},
		{
			name: "nil entry",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := fromEntry(tt.entry)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestInstanceAddr(t *testing.T) {
	inst := Instance{Host: "10.0.0.5", Port: 9717}
	if got := inst.Addr(); got != "10.0.0.5:9717" {
		t.Errorf("expected 10.0.0.5:9717, got %s", got)
	}
}
