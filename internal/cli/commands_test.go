package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path) //nolint:gosec // test
	require.NoError(t, err)

	return string(data)
}

func lines(s string) []string {
	return strings.Fields(s)
}

// ---------------------------------------------------------------------------
// add / remove / list
// ---------------------------------------------------------------------------

func TestAdd_PersistsRelativePattern(t *testing.T) {
	root := newWorkspace(t)

	stdout, _, err := executeCommand(inWorkspace(root, "add", filepath.Join(root, "src", "models", "*"))...)
	require.NoError(t, err)
	assert.Equal(t, "watching 2 directories\n", stdout)

	settings := readFile(t, filepath.Join(root, ".barrelwatch", "settings.yaml"))
	assert.Contains(t, settings, "src/models/*")

	stdout, _, err = executeCommand(inWorkspace(root, "list")...)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/models/*"}, lines(stdout))

	stdout, _, err = executeCommand(inWorkspace(root, "list", "--resolved")...)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"src/models/order", "src/models/user"}, lines(stdout))
}

func TestAdd_Twice(t *testing.T) {
	root := newWorkspace(t)
	dir := filepath.Join(root, "src", "generated")

	_, _, err := executeCommand(inWorkspace(root, "add", dir)...)
	require.NoError(t, err)

	stdout, _, err := executeCommand(inWorkspace(root, "add", dir)...)
	require.NoError(t, err)
	assert.Equal(t, "watching 1 directory\n", stdout)

	stdout, _, err = executeCommand(inWorkspace(root, "list")...)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/generated"}, lines(stdout))
}

func TestAdd_Quiet(t *testing.T) {
	root := newWorkspace(t)

	stdout, _, err := executeCommand(inWorkspace(root, "-q", "add", filepath.Join(root, "src", "generated"))...)
	require.NoError(t, err)
	assert.Empty(t, stdout)
}

func TestAdd_NoArgs(t *testing.T) {
	_, _, err := executeCommand("add")
	require.Error(t, err)
}

func TestAdd_SettingsUnreadable(t *testing.T) {
	root := newWorkspace(t)
	settings := filepath.Join(root, "settings.yaml")
	require.NoError(t, os.WriteFile(settings, []byte("barrelwatch: [broken"), 0o644)) //nolint:gosec // test

	_, _, err := executeCommand(inWorkspace(root, "--settings", settings, "add", filepath.Join(root, "src"))...)
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
}

func TestRemove(t *testing.T) {
	root := newWorkspace(t)
	generated := filepath.Join(root, "src", "generated")
	models := filepath.Join(root, "src", "models", "*")

	_, _, err := executeCommand(inWorkspace(root, "add", generated, models)...)
	require.NoError(t, err)

	stdout, _, err := executeCommand(inWorkspace(root, "remove", models)...)
	require.NoError(t, err)
	assert.Equal(t, "watching 1 directory\n", stdout)

	stdout, _, err = executeCommand(inWorkspace(root, "rm", generated)...)
	require.NoError(t, err)
	assert.Equal(t, "watching 0 directories\n", stdout)

	_, stderr, err := executeCommand(inWorkspace(root, "list")...)
	require.NoError(t, err)
	assert.Contains(t, stderr, "no folders are watched")
}

func TestRemove_UnknownFolder(t *testing.T) {
	root := newWorkspace(t)

	_, _, err := executeCommand(inWorkspace(root, "remove", filepath.Join(root, "nope"))...)
	require.NoError(t, err)
}

// ---------------------------------------------------------------------------
// generate
// ---------------------------------------------------------------------------

func TestGenerate_Directory(t *testing.T) {
	root := newWorkspace(t)
	dir := filepath.Join(root, "src", "generated")

	stdout, _, err := executeCommand(inWorkspace(root, "generate", dir)...)
	require.NoError(t, err)
	assert.Equal(t, "src/generated/index.ts is up to date\n", stdout)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bar.ts"), nil, 0o644)) //nolint:gosec // test

	stdout, _, err = executeCommand(inWorkspace(root, "generate", dir)...)
	require.NoError(t, err)
	assert.Equal(t, "wrote src/generated/index.ts (2 exports)\n", stdout)
	assert.Equal(t, "export * from './bar';\nexport * from './foo';\n", readFile(t, filepath.Join(dir, "index.ts")))
}

func TestGenerate_NothingToExport(t *testing.T) {
	root := newWorkspace(t)

	stdout, _, err := executeCommand(inWorkspace(root, "generate", filepath.Join(root, "src", "models"))...)
	require.NoError(t, err)
	assert.Equal(t, "skipped src/models/index.ts (nothing to export)\n", stdout)
	assert.NoFileExists(t, filepath.Join(root, "src", "models", "index.ts"))
}

func TestGenerate_DryRun(t *testing.T) {
	root := newWorkspace(t)
	dir := filepath.Join(root, "src", "generated")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bar.ts"), nil, 0o644)) //nolint:gosec // test

	stdout, stderr, err := executeCommand(inWorkspace(root, "--no-color", "generate", "--dry-run", dir)...)
	require.NoError(t, err)
	assert.Equal(t, "+1 -0 src/generated/index.ts\n", stderr)
	assert.Contains(t, stdout, "--- a/src/generated/index.ts")
	assert.Contains(t, stdout, "+export * from './bar';")
	assert.NotContains(t, stdout, "\033[")

	assert.Equal(t, "export * from './foo';\n", readFile(t, filepath.Join(dir, "index.ts")))
}

func TestGenerate_AllWatchedFolders(t *testing.T) {
	root := newWorkspace(t)

	_, _, err := executeCommand(inWorkspace(root, "add", filepath.Join(root, "src", "models", "*"))...)
	require.NoError(t, err)

	_, _, err = executeCommand(inWorkspace(root, "generate")...)
	require.NoError(t, err)

	assert.Equal(t, "export * from './user';\n", readFile(t, filepath.Join(root, "src", "models", "user", "index.ts")))
	assert.Equal(t, "export * from './order';\n", readFile(t, filepath.Join(root, "src", "models", "order", "index.ts")))
}

func TestGenerate_MissingDirectory(t *testing.T) {
	root := newWorkspace(t)

	_, _, err := executeCommand(inWorkspace(root, "generate", filepath.Join(root, "missing"))...)
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
}

// ---------------------------------------------------------------------------
// watch
// ---------------------------------------------------------------------------

func TestWatch_RegeneratesAndReloadsSettings(t *testing.T) {
	root := newWorkspace(t)
	generated := filepath.Join(root, "src", "generated")
	user := filepath.Join(root, "src", "models", "user")

	_, _, err := executeCommand(inWorkspace(root, "add", generated)...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() {
		_, _, err := executeCommandContext(ctx, inWorkspace(root, "-q", "watch", "--debounce", "10ms")...)
		done <- err
	}()

	// Touch on every poll: the watcher may not be subscribed yet.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(generated, "bar.ts"), nil, 0o644) //nolint:gosec // test

		data, err := os.ReadFile(filepath.Join(generated, "index.ts")) //nolint:gosec // test

		return err == nil && strings.Contains(string(data), "./bar")
	}, 5*time.Second, 50*time.Millisecond)

	_, _, err = executeCommand(inWorkspace(root, "add", user)...)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(user, "role.ts"), nil, 0o644) //nolint:gosec // test

		data, err := os.ReadFile(filepath.Join(user, "index.ts")) //nolint:gosec // test

		return err == nil && strings.Contains(string(data), "./role")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatch_NoArgs(t *testing.T) {
	_, _, err := executeCommand("watch", "extra")
	require.Error(t, err)
}

func TestWatch_NegativeDebounce(t *testing.T) {
	_, _, err := executeCommand("watch", "--debounce=-1s")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestGenerate_DryRunQuietOmitsSummary(t *testing.T) {
	root := newWorkspace(t)

	_, stderr, err := executeCommand(inWorkspace(root, "-q", "generate", "--dry-run", filepath.Join(root, "src", "generated"))...)
	require.NoError(t, err)
	assert.Empty(t, stderr)
}
