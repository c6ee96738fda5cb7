package flatpak

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"voicerack/internal/config"
	"voicerack/internal/services"
)

// Component is a catalog entry parsed from a remote's appstream data.
type Component struct {
	ID           string
	Name         string
	Summary      string
	Extends      []string
	Languages    []string
	DownloadSize int64
	Remote       string
}

// ProgressUpdate captures install progress reported by the flatpak CLI.
type ProgressUpdate struct {
	Percent float64
	Message string
}

// Manager abstracts the bundle manager operations the install core needs.
type Manager interface {
	RemoteIndex(ctx context.Context) ([]Component, error)
	InstalledRefs(ctx context.Context) (map[string]struct{}, error)
	Install(ctx context.Context, remote, ref string, progress func(ProgressUpdate)) error
	Uninstall(ctx context.Context, ref string) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithCommandPrefix forces a host command prefix instead of autodetection.
func WithCommandPrefix(prefix []string) Option {
	return func(c *Client) {
		c.prefix = append([]string(nil), prefix...)
		c.prefixSet = true
	}
}

// Client wraps flatpak CLI interactions.
type Client struct {
	binary        string
	prefix        []string
	prefixSet     bool
	installations []string
	remotes       []string
	arch          string
	systemDir     string
	userDir       string
	exec          Executor
}

// New constructs a flatpak client from configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	client := &Client{
		binary:        cfg.FlatpakBinary(),
		installations: append([]string(nil), cfg.Flatpak.Installations...),
		remotes:       append([]string(nil), cfg.Flatpak.Remotes...),
		arch:          cfg.Flatpak.Arch,
		systemDir:     cfg.Flatpak.SystemDir,
		userDir:       cfg.Flatpak.UserDir,
		exec:          commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	if !client.prefixSet {
		client.prefix = detectHostPrefix(client.exec)
	}
	return client, nil
}

// InstalledRefs returns the application ids currently installed across the
// configured installations. The result is queried fresh on every call; the
// caller caches it for the duration of one resolution.
func (c *Client) InstalledRefs(ctx context.Context) (map[string]struct{}, error) {
	refs := make(map[string]struct{})
	for _, inst := range c.installations {
		args := []string{installationFlag(inst), "list", "--app", "--columns=application"}
		err := c.run(ctx, args, func(line string) {
			line = strings.TrimSpace(line)
			if line == "" || strings.EqualFold(line, "Application ID") {
				return
			}
			refs[line] = struct{}{}
		})
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "flatpak", "list installed", inst, err)
		}
	}
	return refs, nil
}

// Install installs the named ref from the given remote, forwarding any
// progress the CLI reports. The call blocks until flatpak exits.
func (c *Client) Install(ctx context.Context, remote, ref string, progress func(ProgressUpdate)) error {
	remote = strings.TrimSpace(remote)
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return services.Wrap(services.ErrValidation, "flatpak", "install", "bundle ref required", nil)
	}
	args := []string{"install", "--noninteractive"}
	if remote != "" {
		args = append(args, remote)
	}
	args = append(args, ref)

	err := c.run(ctx, args, func(line string) {
		if progress == nil {
			return
		}
		if update, ok := parseProgress(line); ok {
			progress(update)
		}
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "flatpak", "install", ref, err)
	}
	return nil
}

// Uninstall removes the named ref.
func (c *Client) Uninstall(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return services.Wrap(services.ErrValidation, "flatpak", "uninstall", "bundle ref required", nil)
	}
	if err := c.run(ctx, []string{"uninstall", "--noninteractive", ref}, nil); err != nil {
		return services.Wrap(services.ErrExternalTool, "flatpak", "uninstall", ref, err)
	}
	return nil
}

// EnabledRemotes lists the enabled remote names per configured installation.
// When the configuration pins specific remotes, only those are returned.
func (c *Client) EnabledRemotes(ctx context.Context) ([]string, error) {
	allowed := make(map[string]struct{}, len(c.remotes))
	for _, remote := range c.remotes {
		allowed[remote] = struct{}{}
	}

	seen := make(map[string]struct{})
	var names []string
	for _, inst := range c.installations {
		args := []string{installationFlag(inst), "remotes", "--columns=name,options"}
		err := c.run(ctx, args, func(line string) {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				return
			}
			name := fields[0]
			if strings.EqualFold(name, "Name") {
				return
			}
			for _, opt := range fields[1:] {
				if strings.Contains(opt, "disabled") {
					return
				}
			}
			if len(allowed) > 0 {
				if _, ok := allowed[name]; !ok {
					return
				}
			}
			if _, ok := seen[name]; ok {
				return
			}
			seen[name] = struct{}{}
			names = append(names, name)
		})
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "flatpak", "list remotes", inst, err)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (c *Client) run(ctx context.Context, args []string, onStdout func(string)) error {
	binary := c.binary
	full := args
	if len(c.prefix) > 0 {
		binary = c.prefix[0]
		full = append(append(append([]string(nil), c.prefix[1:]...), c.binary), args...)
	}
	return c.exec.Run(ctx, binary, full, onStdout)
}

func installationFlag(installation string) string {
	if installation == "user" {
		return "--user"
	}
	return "--system"
}

// detectHostPrefix probes for a sandboxed environment where flatpak commands
// must be routed through flatpak-spawn to reach the host.
func detectHostPrefix(executor Executor) []string {
	if _, err := os.Stat("/.flatpak-info"); err != nil {
		return nil
	}
	prefix := []string{"flatpak-spawn", "--host"}
	probe := append(append([]string(nil), prefix[1:]...), "which", "flatpak")
	if err := executor.Run(context.Background(), prefix[0], probe, func(string) {}); err != nil {
		return nil
	}
	return prefix
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()
			if onStdout != nil {
				onStdout(line)
			} else {
				fmt.Fprintln(os.Stderr, line)
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
