package archive

import (
	"bufio"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v2"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// Credentials holds a username/password pair, however it was sourced
// (inline config, a referenced file, or the environment) per §6.
type Credentials struct {
	Username string
	Password string
}

// LoadCredentialsFile reads a credentials file in any of the three forms
// §6 allows: JSON `{"username": ..., "password": ...}`, a YAML-flavored
// `username: x` / `password: y` document, or plain `user X` / `password Y`
// lines.
func LoadCredentialsFile(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cmn.NewConfigError("datacenters", "cannot read credentials file %q: %v", path, err)
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var c Credentials
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(trimmed, &c); err != nil {
			return nil, cmn.NewConfigError("datacenters", "malformed JSON credentials file %q: %v", path, err)
		}
		return &c, nil
	}
	if c, ok := parseYAMLCredentials(trimmed); ok {
		return c, nil
	}
	return parseLineCredentials(trimmed, path)
}

// parseYAMLCredentials recognizes the `username: x` / `password: y` form;
// plain `user X` / `password Y` lines are not valid YAML mappings (no
// colon), so this simply fails closed and lets the caller fall through to
// parseLineCredentials.
func parseYAMLCredentials(body string) (*Credentials, bool) {
	var c Credentials
	if err := yaml.Unmarshal([]byte(body), &c); err != nil {
		return nil, false
	}
	if c.Username == "" && c.Password == "" {
		return nil, false
	}
	return &c, true
}

func parseLineCredentials(body, path string) (*Credentials, error) {
	c := &Credentials{}
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "user":
			c.Username = fields[1]
		case "password":
			c.Password = fields[1]
		}
	}
	if c.Username == "" && c.Password == "" {
		return nil, cmn.NewConfigError("datacenters", "credentials file %q has neither JSON nor user/password lines", path)
	}
	return c, nil
}

// CredentialsFromEnv builds Credentials from two environment variable
// names, per §6's environment-sourced credentials option.
func CredentialsFromEnv(userVar, passVar string) (*Credentials, bool) {
	u, uok := os.LookupEnv(userVar)
	p, pok := os.LookupEnv(passVar)
	if !uok && !pok {
		return nil, false
	}
	return &Credentials{Username: u, Password: p}, true
}
