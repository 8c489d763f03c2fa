// ABOUTME: mDNS advertisement and browsing for the diagnostics endpoint
// ABOUTME: Publishes _vigour._tcp and finds other instances on the LAN
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// ServiceType is the advertised DNS-SD service
const ServiceType = "_vigour._tcp"

// Config holds discovery configuration
type Config struct {
	InstanceName string
	Port         int
	Version      string
	Logger       *zap.Logger
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// Instance describes a discovered diagnostics endpoint
type Instance struct {
	Name    string
	Host    string
	Port    int
	Version string
}

// Addr returns host:port
func (i Instance) Addr() string {
	return net.JoinHostPort(i.Host, fmt.Sprint(i.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		logger: config.Logger.Named("mdns"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// TXT returns the TXT records published with the service
func (m *Manager) TXT() []string {
	return []string{"path=/state", "ws=/ws", "version=" + m.config.Version}
}

// Advertise publishes the diagnostics endpoint until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.InstanceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.TXT(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.logger.Info("advertising mDNS service",
		zap.String("instance", m.config.InstanceName),
		zap.Int("port", m.config.Port),
		zap.String("type", ServiceType))

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Stop withdraws the advertisement
func (m *Manager) Stop() {
	m.cancel()
}

// Browse queries the LAN for instances for up to timeout
func Browse(ctx context.Context, timeout time.Duration) ([]Instance, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var found []Instance
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			if inst, ok := fromEntry(entry); ok {
				found = append(found, inst)
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.QueryContext(ctx, params)
	close(entries)
	<-done

	if err != nil {
		return found, fmt.Errorf("mdns query failed: %w", err)
	}
	return found, nil
}

// fromEntry converts a service entry, skipping entries of other services
func fromEntry(entry *mdns.ServiceEntry) (Instance, bool) {
	if entry == nil || !strings.Contains(entry.Name, ServiceType) {
		return Instance{}, false
	}

	inst := Instance{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Port: entry.Port,
	}
	switch {
	case entry.AddrV4 != nil:
		inst.Host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		inst.Host = entry.AddrV6.String()
	default:
		inst.Host = strings.TrimSuffix(entry.Host, ".")
	}
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "version="); ok {
			inst.Version = v
		}
	}
	return inst, true
}

// getLocalIPs returns local IPv4 addresses of interfaces that are up
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
