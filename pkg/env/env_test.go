package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	previous, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(previous) })
}

func TestLoadAppliesNearestEnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "# comment\nexport DHI_ENV_TEST_A=hello\nDHI_ENV_TEST_B='quoted value'\nDHI_ENV_TEST_C=\"double\"\nnot_an_assignment\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	nested := filepath.Join(dir, "sub", "deeper")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	chdir(t, nested)

	t.Setenv("DHI_ENV_TEST_A", "")
	os.Unsetenv("DHI_ENV_TEST_A")
	t.Setenv("DHI_ENV_TEST_B", "")
	os.Unsetenv("DHI_ENV_TEST_B")
	t.Setenv("DHI_ENV_TEST_C", "")
	os.Unsetenv("DHI_ENV_TEST_C")

	apply(false)

	assert.Equal(t, "hello", os.Getenv("DHI_ENV_TEST_A"))
	assert.Equal(t, "quoted value", os.Getenv("DHI_ENV_TEST_B"))
	assert.Equal(t, "double", os.Getenv("DHI_ENV_TEST_C"))
}

func TestExistingProcessEnvWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DHI_ENV_TEST_D=from_file\n"), 0o600))
	chdir(t, dir)

	t.Setenv("DHI_ENV_TEST_D", "from_process")

	apply(false)
	assert.Equal(t, "from_process", os.Getenv("DHI_ENV_TEST_D"))

	apply(true)
	assert.Equal(t, "from_file", os.Getenv("DHI_ENV_TEST_D"))
}

func TestNoEnvFileIsANoOp(t *testing.T) {
	chdir(t, t.TempDir())
	// Must not panic or error when no .env exists up the tree (the temp
	// root's parents may still carry one; findEnvFile simply returns it).
	apply(false)
}
