// Package testutil starts throwaway dependency containers for integration tests.
package testutil

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container test configuration constants
const (
	containerStartupTimeout   = 90 * time.Second
	containerTerminateTimeout = 10 * time.Second
	containerMemoryLimit      = 256 * 1024 * 1024 // 256MB
)

// Dependency describes a container image and how to reach it.
type Dependency struct {
	Name  string
	Image string
	Port  nat.Port
	Env   map[string]string
	Wait  wait.Strategy

	// URL renders the connection URL for the mapped address.
	URL func(addr string) string
}

// RunningDependency is a started container.
type RunningDependency struct {
	Container testcontainers.Container
	Addr      string
	URL       string
}

var (
	shared   = map[string]*RunningDependency{}
	sharedMu sync.Mutex
)

// Start returns a running container for dep. Containers are shared by name
// within the test binary and live until CleanupSharedContainers.
func Start(ctx context.Context, dep Dependency) (*RunningDependency, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if running, ok := shared[dep.Name]; ok {
		if isRunning(ctx, running.Container) {
			return running, nil
		}
		terminate(running.Container)
		delete(shared, dep.Name)
	}

	startupCtx, cancel := context.WithTimeout(ctx, containerStartupTimeout)
	defer cancel()

	running, err := startContainer(startupCtx, dep)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s container: %w", dep.Name, err)
	}
	shared[dep.Name] = running
	return running, nil
}

// StartT is Start for tests: it skips when Docker is unavailable.
func StartT(t *testing.T, dep Dependency) *RunningDependency {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	running, err := Start(context.Background(), dep)
	if err != nil {
		t.Fatalf("Failed to start %s: %v", dep.Name, err)
	}
	return running
}

// Stop terminates the shared container for dep, if any. Useful to simulate an outage.
func Stop(dep Dependency) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if running, ok := shared[dep.Name]; ok {
		terminate(running.Container)
		delete(shared, dep.Name)
	}
}

// CleanupSharedContainers terminates every shared container.
// This is typically called from TestMain.
func CleanupSharedContainers() {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	for name, running := range shared {
		terminate(running.Container)
		delete(shared, name)
	}
}

func startContainer(ctx context.Context, dep Dependency) (*RunningDependency, error) {
	req := testcontainers.ContainerRequest{
		Image:        dep.Image,
		ExposedPorts: []string{string(dep.Port)},
		Env:          dep.Env,
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.Memory = containerMemoryLimit
			hc.MemorySwap = containerMemoryLimit
		},
		WaitingFor: dep.Wait,
	}

	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}

	host, err := cont.Host(ctx)
	if err != nil {
		terminate(cont)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := cont.MappedPort(ctx, dep.Port)
	if err != nil {
		terminate(cont)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	addr := net.JoinHostPort(host, port.Port())
	return &RunningDependency{
		Container: cont,
		Addr:      addr,
		URL:       dep.URL(addr),
	}, nil
}

func isRunning(ctx context.Context, cont testcontainers.Container) bool {
	if cont == nil {
		return false
	}
	state, err := cont.State(ctx)
	return err == nil && state.Running
}

func terminate(cont testcontainers.Container) {
	if cont == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), containerTerminateTimeout)
	defer cancel()
	_ = cont.Terminate(ctx)
}
