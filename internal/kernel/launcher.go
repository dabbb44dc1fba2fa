package kernel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// CommandContext is the function used to create exec.Cmd instances.
// It can be replaced in tests to mock the gateway process.
var CommandContext = exec.CommandContext

// lookPath is swappable in tests so launcher behavior can be exercised
// without a kernel gateway installed.
var lookPath = exec.LookPath

const (
	gatewayBinary = "jupyter-kernelgateway"
	readyTimeout  = 30 * time.Second
	stopGrace     = 5 * time.Second
)

// GatewayAvailable checks if the kernel gateway command exists in PATH.
func GatewayAvailable() bool {
	_, err := lookPath(gatewayBinary)
	return err == nil
}

// Launcher manages a locally spawned kernel gateway process, used when
// no external gateway URL is configured.
type Launcher struct {
	cmd     *exec.Cmd
	baseURL string
	logger  *zap.Logger
}

// LaunchGateway starts a local kernel gateway on the given port and
// waits for its REST endpoint to come up.
func LaunchGateway(ctx context.Context, port int, logger *zap.Logger) (*Launcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !GatewayAvailable() {
		return nil, errors.New("jupyter-kernelgateway not found in PATH; install it or set the gateway URL")
	}

	cmd := CommandContext(ctx, gatewayBinary,
		"--KernelGatewayApp.ip=127.0.0.1",
		fmt.Sprintf("--KernelGatewayApp.port=%d", port),
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start kernel gateway: %w", err)
	}

	l := &Launcher{
		cmd:     cmd,
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		logger:  logger,
	}

	if err := l.waitReady(ctx); err != nil {
		l.Stop()
		return nil, err
	}
	logger.Info("local kernel gateway ready", zap.String("url", l.baseURL))
	return l, nil
}

// URL returns the gateway base URL.
func (l *Launcher) URL() string {
	return l.baseURL
}

// waitReady polls the gateway's API root until it responds or the ready
// budget elapses.
func (l *Launcher) waitReady(ctx context.Context) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(readyTimeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api", nil)
		if err == nil {
			if resp, err := client.Do(req); err == nil {
				resp.Body.Close()
				if resp.StatusCode < 500 {
					return nil
				}
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("kernel gateway did not become ready within %s", readyTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop terminates the gateway process, escalating to a kill if it does
// not exit within the grace period.
func (l *Launcher) Stop() error {
	if l.cmd.Process == nil {
		return nil
	}
	_ = l.cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- l.cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(stopGrace):
		l.logger.Warn("kernel gateway did not exit; killing it")
		_ = l.cmd.Process.Kill()
		<-done
		return nil
	}
}
