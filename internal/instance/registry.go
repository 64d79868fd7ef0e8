package instance

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hashicorp/consul/api"
)

// ServiceRegistry advertises this process's reachability to Consul so an
// orchestrator can discover which node currently owns a given instance.
// Adapted from the teacher's ConsulRegistry: one service per process
// (rather than one per chat-server node), health-checked the same way.
type ServiceRegistry struct {
	client    *api.Client
	serviceID string
	nodeID    string
	port      int
	logger    *log.Logger
}

// NewServiceRegistry dials Consul at addr. nodeID identifies this process
// (typically a hostname or pod name); port is the health-check listener.
func NewServiceRegistry(addr, nodeID string, port int) (*ServiceRegistry, error) {
	cfg := api.DefaultConfig()
	cfg.Address = addr

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("instance: consul client: %w", err)
	}

	return &ServiceRegistry{
		client:    client,
		serviceID: nodeID,
		nodeID:    nodeID,
		port:      port,
		logger:    log.New(os.Stdout, "[INSTANCE-REGISTRY] ", log.Ldate|log.Ltime|log.LUTC),
	}, nil
}

// Register advertises this node as a wasubstrate-core service.
func (r *ServiceRegistry) Register() error {
	hostname, err := os.Hostname()
	if err != nil {
		r.logger.Printf("failed to get hostname, using localhost: %v", err)
		hostname = "localhost"
	}

	registration := &api.AgentServiceRegistration{
		ID:      r.serviceID,
		Name:    "wasubstrate-core",
		Port:    r.port,
		Address: hostname,
		Tags:    []string{"signal", "whatsapp-web"},
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", hostname, r.port),
			Interval:                       "10s",
			Timeout:                        "3s",
			DeregisterCriticalServiceAfter: "30s",
		},
		Meta: map[string]string{
			"node_id": r.nodeID,
		},
	}

	if err := r.client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("instance: consul register: %w", err)
	}
	r.logger.Printf("registered with consul: %s", r.serviceID)
	return nil
}

// Deregister removes this node's advertisement.
func (r *ServiceRegistry) Deregister() error {
	if err := r.client.Agent().ServiceDeregister(r.serviceID); err != nil {
		return fmt.Errorf("instance: consul deregister: %w", err)
	}
	r.logger.Printf("deregistered from consul: %s", r.serviceID)
	return nil
}

// HealthyNodes returns the node IDs of every healthy wasubstrate-core
// service, used to route an instance's traffic to a live owner.
func (r *ServiceRegistry) HealthyNodes() ([]string, error) {
	services, _, err := r.client.Health().Service("wasubstrate-core", "", true, nil)
	if err != nil {
		return nil, fmt.Errorf("instance: consul health query: %w", err)
	}

	nodes := make([]string, 0, len(services))
	for _, svc := range services {
		nodes = append(nodes, svc.Service.ID)
	}
	return nodes, nil
}

// WatchNodes blocks, invoking callback whenever the set of healthy nodes
// changes, until stop is closed.
func (r *ServiceRegistry) WatchNodes(stop <-chan struct{}, callback func([]string)) {
	var lastIndex uint64

	for {
		select {
		case <-stop:
			return
		default:
		}

		services, meta, err := r.client.Health().Service("wasubstrate-core", "", true, &api.QueryOptions{
			WaitIndex: lastIndex,
			WaitTime:  5 * time.Minute,
		})
		if err != nil {
			r.logger.Printf("error watching consul services: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		if meta.LastIndex != lastIndex {
			lastIndex = meta.LastIndex

			nodes := make([]string, 0, len(services))
			for _, svc := range services {
				nodes = append(nodes, svc.Service.ID)
			}
			callback(nodes)
		}
	}
}
