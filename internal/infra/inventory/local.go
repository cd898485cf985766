package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/vietddude/softscan/internal/core/domain"
)

// CommandRunner runs an external command and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// LocalSource enumerates software installed on this machine.
type LocalSource struct {
	goos     string
	platform func(ctx context.Context) (family string, err error)
	run      CommandRunner
}

// NewLocalSource creates a LocalSource for the running operating system.
func NewLocalSource() *LocalSource {
	return &LocalSource{
		goos:     runtime.GOOS,
		platform: platformFamily,
		run:      execRunner,
	}
}

func platformFamily(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", err
	}
	slog.Debug("Detected host", "os", info.OS, "platform", info.Platform,
		"family", info.PlatformFamily, "version", info.PlatformVersion)
	return info.PlatformFamily, nil
}

// Items implements Source. Enumeration failures are logged and produce an
// empty list.
func (s *LocalSource) Items(ctx context.Context) ([]domain.Item, error) {
	items, err := s.enumerate(ctx)
	if err != nil {
		slog.Warn("Failed to enumerate installed software", "os", s.goos, "error", err)
		return nil, nil
	}
	return domain.Dedupe(items), nil
}

func (s *LocalSource) enumerate(ctx context.Context) ([]domain.Item, error) {
	switch s.goos {
	case "windows":
		out, err := s.run(ctx, "wmic", "product", "get", "name,version")
		if err != nil {
			return nil, fmt.Errorf("wmic: %w", err)
		}
		return parseWMIC(out), nil

	case "darwin":
		out, err := s.run(ctx, "system_profiler", "SPApplicationsDataType", "-json")
		if err != nil {
			return nil, fmt.Errorf("system_profiler: %w", err)
		}
		return parseSystemProfiler(out)

	case "linux":
		return s.enumerateLinux(ctx)
	}
	return nil, fmt.Errorf("unsupported operating system %q", s.goos)
}

type packageQuery struct {
	name string
	args []string
}

var (
	dpkgQuery = packageQuery{"dpkg-query", []string{"-W", "-f=${Package} ${Version}\n"}}
	rpmQuery  = packageQuery{"rpm", []string{"-qa", "--queryformat", "%{NAME} %{VERSION}\n"}}
)

// enumerateLinux asks dpkg first and falls back to rpm; RPM-based families
// are asked in the opposite order.
func (s *LocalSource) enumerateLinux(ctx context.Context) ([]domain.Item, error) {
	order := []packageQuery{dpkgQuery, rpmQuery}

	family, err := s.platform(ctx)
	if err != nil {
		slog.Debug("Host detection failed", "error", err)
	}
	switch family {
	case "rhel", "fedora", "suse":
		order = []packageQuery{rpmQuery, dpkgQuery}
	}

	var lastErr error
	for _, q := range order {
		out, err := s.run(ctx, q.name, q.args...)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", q.name, err)
			continue
		}
		return parseNameVersion(out), nil
	}
	return nil, lastErr
}
