package configloader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Server struct {
		Port int `koanf:"port"`
	} `koanf:"server"`
	Name string `koanf:"name"`
}

func (c *testConfig) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server port is not configured")
	}
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_LoadFrom(t *testing.T) {
	testCases := []struct {
		name         string
		yaml         string
		dotenv       string
		env          map[string]string
		expectedPort int
		expectedName string
		expectError  bool
	}{
		{
			name:         "Success - yaml only",
			yaml:         "server:\n  port: 8080\nname: from-yaml\n",
			expectedPort: 8080,
			expectedName: "from-yaml",
		},
		{
			name:         "Success - .env overrides yaml",
			yaml:         "server:\n  port: 8080\nname: from-yaml\n",
			dotenv:       "TESTSVC_NAME=from-dotenv\nOTHER_NAME=ignored\n",
			expectedPort: 8080,
			expectedName: "from-dotenv",
		},
		{
			name:         "Success - system env has the highest priority",
			yaml:         "server:\n  port: 8080\nname: from-yaml\n",
			dotenv:       "TESTSVC_NAME=from-dotenv\n",
			env:          map[string]string{"TESTSVC_NAME": "from-env", "TESTSVC_SERVER_PORT": "9090"},
			expectedPort: 9090,
			expectedName: "from-env",
		},
		{
			name:        "Error - validation fails",
			yaml:        "name: no-port\n",
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			dir := t.TempDir()
			configFile := writeFile(t, dir, "config.yaml", tc.yaml)
			envFile := filepath.Join(dir, ".env")
			if tc.dotenv != "" {
				writeFile(t, dir, ".env", tc.dotenv)
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			// when
			cfg, err := LoadFrom[*testConfig]("testsvc", configFile, envFile)

			// then
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedPort, cfg.Server.Port)
			assert.Equal(t, tc.expectedName, cfg.Name)
		})
	}
}

func Test_EnvPrefix(t *testing.T) {
	assert.Equal(t, "CATALOG_", EnvPrefix("catalog"))
}
