package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nbrunner/internal/executor"
	"nbrunner/internal/kernel"
	"nbrunner/internal/workspace"
)

// GatewayKernels provisions kernels on a Jupyter kernel gateway. Each
// session gets its own kernel, shut down when the session closes, so
// every notebook starts from a clean interpreter.
type GatewayKernels struct {
	Client     *kernel.Client
	KernelName string
}

// NewSession starts a kernel and opens its channels connection.
func (g *GatewayKernels) NewSession(ctx context.Context) (executor.Session, error) {
	k, err := g.Client.StartKernel(ctx, g.KernelName)
	if err != nil {
		return nil, err
	}

	sess, err := g.Client.Connect(ctx, k.ID)
	if err != nil {
		g.Client.ShutdownKernel(context.WithoutCancel(ctx), k.ID)
		return nil, fmt.Errorf("failed to open kernel channels: %w", err)
	}

	return &gatewaySession{Session: sess, client: g.Client, kernelID: k.ID}, nil
}

// gatewaySession ties the kernel's lifetime to the session's.
type gatewaySession struct {
	*kernel.Session
	client   *kernel.Client
	kernelID string
}

func (s *gatewaySession) Close() error {
	err := s.Session.Close()
	if serr := s.client.ShutdownKernel(context.Background(), s.kernelID); serr != nil && err == nil {
		err = serr
	}
	return err
}

// ManagerFactory builds one workspace lifecycle manager per notebook
// test, all sharing the same API client and adoption setting.
type ManagerFactory struct {
	API       workspace.API
	AdoptedID string
	Logger    *zap.Logger
}

// NewManager creates the manager for one notebook test.
func (f *ManagerFactory) NewManager() *workspace.Manager {
	return workspace.NewManager(f.API, f.AdoptedID, f.Logger)
}
