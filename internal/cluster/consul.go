// Package cluster registers the server with Consul and exposes the health
// endpoint Consul polls.
package cluster

import (
	"errors"
	"fmt"
	"os"
	"strings"

	consul "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// NewConsulClient tries each comma-separated agent address in turn and
// returns a client for the first one that knows the cluster leader.
func NewConsulClient(addrs string, log *zap.Logger) (*consul.Client, error) {
	for _, node := range strings.Split(addrs, ",") {
		node = strings.TrimSpace(node)
		if node == "" {
			continue
		}
		cfg := consul.DefaultConfig()
		cfg.Address = node

		client, err := consul.NewClient(cfg)
		if err != nil {
			log.Warn("consul client failed", zap.String("addr", node), zap.Error(err))
			continue
		}
		if _, err := client.Status().Leader(); err != nil {
			log.Warn("consul agent not ready", zap.String("addr", node), zap.Error(err))
			continue
		}
		log.Info("connected to consul", zap.String("addr", node))
		return client, nil
	}
	return nil, fmt.Errorf("no consul agent available in %q", addrs)
}

// Service describes this process to Consul.
type Service struct {
	Name string
	// Host is what the health check URL is built from; defaults to the
	// hostname.
	Host       string
	TCPPort    int
	HealthPort int
}

func (s Service) id() string { return fmt.Sprintf("%s-%s", s.Name, s.Host) }

// Register adds the service with an HTTP health check and returns the
// function that removes it again.
func Register(client *consul.Client, svc Service, log *zap.Logger) (func() error, error) {
	if svc.Name == "" {
		return nil, errors.New("service name is required")
	}
	if svc.Host == "" {
		svc.Host = os.Getenv("HOSTNAME")
	}
	if svc.Host == "" {
		svc.Host, _ = os.Hostname()
	}

	reg := &consul.AgentServiceRegistration{
		ID:   svc.id(),
		Name: svc.Name,
		Port: svc.TCPPort,
		Tags: []string{"gomoku", "tcp", "websocket"},
		Check: &consul.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", svc.Host, svc.HealthPort),
			Timeout:                        "5s",
			Interval:                       "10s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := client.Agent().ServiceRegister(reg); err != nil {
		return nil, fmt.Errorf("register %s in consul: %w", reg.ID, err)
	}
	log.Info("registered in consul", zap.String("service_id", reg.ID))

	return func() error {
		if err := client.Agent().ServiceDeregister(reg.ID); err != nil {
			return fmt.Errorf("deregister %s: %w", reg.ID, err)
		}
		log.Info("deregistered from consul", zap.String("service_id", reg.ID))
		return nil
	}, nil
}
