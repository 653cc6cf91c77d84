package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFileAppliesPairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	content := "# comment\n" +
		"export TEST_ENVFILE_A=\"from file\"\n" +
		"TEST_ENVFILE_B='quoted'\n" +
		"TEST_ENVFILE_C=overridden\n" +
		"not a pair\n" +
		"=no key\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AGENTMUX_ENV_FILE", path)
	t.Setenv("TEST_ENVFILE_C", "already set")
	t.Cleanup(func() {
		os.Unsetenv("TEST_ENVFILE_A")
		os.Unsetenv("TEST_ENVFILE_B")
	})

	LoadEnvFile()

	if got := os.Getenv("TEST_ENVFILE_A"); got != "from file" {
		t.Fatalf("A = %q", got)
	}
	if got := os.Getenv("TEST_ENVFILE_B"); got != "quoted" {
		t.Fatalf("B = %q", got)
	}
	if got := os.Getenv("TEST_ENVFILE_C"); got != "already set" {
		t.Fatal("process env must win over the file")
	}
}

func TestLoadEnvFileMissingIsNoop(t *testing.T) {
	t.Setenv("AGENTMUX_ENV_FILE", filepath.Join(t.TempDir(), "missing"))
	LoadEnvFile()
}
