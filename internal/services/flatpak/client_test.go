package flatpak_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"voicerack/internal/config"
	"voicerack/internal/services"
	"voicerack/internal/services/flatpak"
)

type fakeExecutor struct {
	calls   [][]string
	outputs map[string][]string
	errs    map[string]error
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	call := append([]string{binary}, args...)
	f.calls = append(f.calls, call)
	key := strings.Join(call, " ")
	for match, err := range f.errs {
		if strings.Contains(key, match) {
			return err
		}
	}
	for match, lines := range f.outputs {
		if strings.Contains(key, match) {
			if onStdout != nil {
				for _, line := range lines {
					onStdout(line)
				}
			}
			return nil
		}
	}
	return nil
}

func newTestClient(t *testing.T, executor flatpak.Executor) *flatpak.Client {
	t.Helper()
	cfg := config.Default()
	cfg.Flatpak.Installations = []string{"user"}
	client, err := flatpak.New(&cfg, flatpak.WithExecutor(executor), flatpak.WithCommandPrefix(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestInstalledRefsCollectsApplications(t *testing.T) {
	executor := &fakeExecutor{outputs: map[string][]string{
		"list --app": {"Application ID", "org.example.Provider", "org.example.Provider.Voice.en", ""},
	}}
	client := newTestClient(t, executor)

	refs, err := client.InstalledRefs(context.Background())
	if err != nil {
		t.Fatalf("InstalledRefs: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %v", refs)
	}
	if _, ok := refs["org.example.Provider.Voice.en"]; !ok {
		t.Fatal("missing voice ref")
	}

	call := strings.Join(executor.calls[0], " ")
	if !strings.Contains(call, "--user list --app --columns=application") {
		t.Fatalf("unexpected list invocation: %q", call)
	}
}

func TestInstallBuildsNoninteractiveCommand(t *testing.T) {
	executor := &fakeExecutor{outputs: map[string][]string{
		"install": {"Installing 1/1… 50%", "Installing 1/1… 100%"},
	}}
	client := newTestClient(t, executor)

	var percents []float64
	err := client.Install(context.Background(), "flathub", "org.example.Provider.Voice.en", func(u flatpak.ProgressUpdate) {
		percents = append(percents, u.Percent)
	})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	call := strings.Join(executor.calls[0], " ")
	want := "flatpak install --noninteractive flathub org.example.Provider.Voice.en"
	if call != want {
		t.Fatalf("unexpected install invocation: got %q want %q", call, want)
	}
	if len(percents) != 2 || percents[0] != 50 || percents[1] != 100 {
		t.Fatalf("unexpected progress: %v", percents)
	}
}

func TestInstallRequiresRef(t *testing.T) {
	client := newTestClient(t, &fakeExecutor{})
	err := client.Install(context.Background(), "flathub", "  ", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInstallWrapsExecutorFailure(t *testing.T) {
	executor := &fakeExecutor{errs: map[string]error{"install": errors.New("network unreachable")}}
	client := newTestClient(t, executor)

	err := client.Install(context.Background(), "flathub", "org.example.Provider", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "network unreachable") {
		t.Fatalf("missing cause: %v", err)
	}
}

func TestUninstallBuildsCommand(t *testing.T) {
	executor := &fakeExecutor{}
	client := newTestClient(t, executor)

	if err := client.Uninstall(context.Background(), "org.example.Provider.Voice.en"); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	call := strings.Join(executor.calls[0], " ")
	if call != "flatpak uninstall --noninteractive org.example.Provider.Voice.en" {
		t.Fatalf("unexpected uninstall invocation: %q", call)
	}
}

func TestEnabledRemotesSkipsDisabledAndHonorsPins(t *testing.T) {
	executor := &fakeExecutor{outputs: map[string][]string{
		"remotes": {"Name Options", "flathub system", "beta system,disabled", "voices user"},
	}}

	cfg := config.Default()
	cfg.Flatpak.Installations = []string{"user"}
	cfg.Flatpak.Remotes = []string{"flathub"}
	client, err := flatpak.New(&cfg, flatpak.WithExecutor(executor), flatpak.WithCommandPrefix(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	remotes, err := client.EnabledRemotes(context.Background())
	if err != nil {
		t.Fatalf("EnabledRemotes: %v", err)
	}
	if len(remotes) != 1 || remotes[0] != "flathub" {
		t.Fatalf("unexpected remotes: %v", remotes)
	}
}

func TestCommandPrefixRoutesThroughHost(t *testing.T) {
	executor := &fakeExecutor{}
	cfg := config.Default()
	cfg.Flatpak.Installations = []string{"user"}
	client, err := flatpak.New(&cfg,
		flatpak.WithExecutor(executor),
		flatpak.WithCommandPrefix([]string{"flatpak-spawn", "--host"}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := client.Uninstall(context.Background(), "org.example.Voice"); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	call := strings.Join(executor.calls[0], " ")
	if !strings.HasPrefix(call, "flatpak-spawn --host flatpak uninstall") {
		t.Fatalf("expected host prefix, got %q", call)
	}
}
