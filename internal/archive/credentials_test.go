package archive

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCredFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "creds")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadCredentialsFileJSON(t *testing.T) {
	path := writeCredFile(t, `{"username": "alice", "password": "s3cret"}`)
	c, err := LoadCredentialsFile(path)
	if err != nil {
		t.Fatalf("LoadCredentialsFile: %v", err)
	}
	if c.Username != "alice" || c.Password != "s3cret" {
		t.Fatalf("got %+v", c)
	}
}

func TestLoadCredentialsFileYAML(t *testing.T) {
	path := writeCredFile(t, "username: bob\npassword: hunter2\n")
	c, err := LoadCredentialsFile(path)
	if err != nil {
		t.Fatalf("LoadCredentialsFile: %v", err)
	}
	if c.Username != "bob" || c.Password != "hunter2" {
		t.Fatalf("got %+v", c)
	}
}

func TestLoadCredentialsFileLines(t *testing.T) {
	path := writeCredFile(t, "user carol\npassword swordfish\n")
	c, err := LoadCredentialsFile(path)
	if err != nil {
		t.Fatalf("LoadCredentialsFile: %v", err)
	}
	if c.Username != "carol" || c.Password != "swordfish" {
		t.Fatalf("got %+v", c)
	}
}

func TestLoadCredentialsFileInvalid(t *testing.T) {
	path := writeCredFile(t, "this is not credentials\n")
	if _, err := LoadCredentialsFile(path); err == nil {
		t.Fatalf("expected an error for an unrecognized credentials file")
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	os.Setenv("GNSSFETCH_TEST_USER", "dave")
	os.Setenv("GNSSFETCH_TEST_PASS", "pw")
	defer os.Unsetenv("GNSSFETCH_TEST_USER")
	defer os.Unsetenv("GNSSFETCH_TEST_PASS")
	c, ok := CredentialsFromEnv("GNSSFETCH_TEST_USER", "GNSSFETCH_TEST_PASS")
	if !ok {
		t.Fatalf("expected CredentialsFromEnv to find both variables")
	}
	if c.Username != "dave" || c.Password != "pw" {
		t.Fatalf("got %+v", c)
	}
}

func TestCredentialsFromEnvMissing(t *testing.T) {
	if _, ok := CredentialsFromEnv("GNSSFETCH_NO_SUCH_USER", "GNSSFETCH_NO_SUCH_PASS"); ok {
		t.Fatalf("expected CredentialsFromEnv to report not-found for unset variables")
	}
}
