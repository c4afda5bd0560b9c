package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsleuth/sleuth/pkg/models"
)

func writeConfigDir(t *testing.T, sleuthYAML, projectsYAML string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sleuth.yaml"), []byte(sleuthYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects.yaml"), []byte(projectsYAML), 0o644))
	return dir
}

const minimalProjects = `
projects:
  ABL:
    name: Agrani Bank
    log_source_kind: file
    environments:
      prod:
        log_root: /var/log/abl
`

func TestInitializeMergesOverDefaults(t *testing.T) {
	dir := writeConfigDir(t, `
llm:
  provider: local
  local_model: llama3.1:8b
  timeout: 45s
cache:
  l1_size: 128
`, minimalProjects)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	// Overridden values win.
	assert.Equal(t, "llama3.1:8b", cfg.LLM.LocalModel)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 128, cfg.Cache.L1Size)

	// Untouched fields keep their defaults.
	assert.Equal(t, "http://localhost:11434/api/chat", cfg.LLM.LocalEndpoint)
	assert.Equal(t, "sleuth", cfg.Cache.Namespace)
	assert.Equal(t, 0.30, cfg.Rules.IgnoreSaturation)
	assert.Equal(t, DefaultQueryKeys, cfg.Analysis.AllowedQueryKeys)

	assert.Equal(t, dir, cfg.ConfigDir())
}

func TestInitializeBackfillsProjectCodes(t *testing.T) {
	dir := writeConfigDir(t, "llm:\n  provider: local\n", minimalProjects)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	p, ok := cfg.Project("ABL")
	require.True(t, ok)
	assert.Equal(t, "ABL", p.Code, "code backfilled from the map key")
	assert.Equal(t, models.LogSourceFile, p.LogSourceKind)

	env, ok := p.Environment("prod")
	require.True(t, ok)
	assert.Equal(t, "/var/log/abl", env.LogRoot)

	_, ok = cfg.Project("NOPE")
	assert.False(t, ok)
}

func TestInitializeExpandsEnvTemplates(t *testing.T) {
	t.Setenv("TEST_SLEUTH_MODEL", "qwen2.5:32b")
	dir := writeConfigDir(t, `
llm:
  provider: local
  local_model: "{{.TEST_SLEUTH_MODEL}}"
`, minimalProjects)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:32b", cfg.LLM.LocalModel)
}

func TestExpandEnvMissingVariable(t *testing.T) {
	got := ExpandEnv([]byte("value: \"{{.DEFINITELY_NOT_SET_ANYWHERE}}\""))
	assert.Equal(t, "value: \"\"", string(got))
}

func TestExpandEnvNonTemplateContentUnchanged(t *testing.T) {
	raw := []byte("pattern: \"{{ broken template\"")
	assert.Equal(t, raw, ExpandEnv(raw))
}

func TestInitializeMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "sleuth.yaml", loadErr.File)
}

func TestInitializeInvalidYAML(t *testing.T) {
	dir := writeConfigDir(t, "llm: [not a mapping", minimalProjects)
	_, err := Initialize(context.Background(), dir)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	dir := writeConfigDir(t, `
llm:
  provider: remote
`, `
projects:
  BAD:
    log_source_kind: carrier-pigeon
  EMPTY:
    log_source_kind: remote
`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	// remote endpoint, api key, model, bad source kind, no environments.
	assert.GreaterOrEqual(t, len(vErr.Problems), 5)
}

func TestValidateRemoteProjectNeedsNamespace(t *testing.T) {
	dir := writeConfigDir(t, "llm:\n  provider: local\n", `
projects:
  NCC:
    log_source_kind: remote
    environments:
      prod: {}
`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Problems, 1)
	assert.Contains(t, vErr.Problems[0], "namespace")
}

func TestValidateL2URLRequiredWhenEnabled(t *testing.T) {
	dir := writeConfigDir(t, `
llm:
  provider: local
cache:
  l2_enabled: true
`, minimalProjects)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Problems[0], "l2_url")
}

func TestLLMConfigModel(t *testing.T) {
	c := &LLMConfig{Provider: "local", LocalModel: "a", RemoteModel: "b"}
	assert.Equal(t, "a", c.Model())
	c.Provider = "remote"
	assert.Equal(t, "b", c.Model())
}
