package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "separate value",
			args:         []string{"-a", ":8000", "-d", "postgres://x"},
			allowedFlags: []string{"-a"},
			want:         []string{"-a", ":8000"},
		},
		{
			name:         "equals form",
			args:         []string{"--config=alt.json", "-a", "localhost"},
			allowedFlags: []string{"--config"},
			want:         []string{"--config=alt.json"},
		},
		{
			name:         "flag without value before another flag",
			args:         []string{"-a", "-d", "dsn"},
			allowedFlags: []string{"-a", "-d"},
			want:         []string{"-a", "-d", "dsn"},
		},
		{
			name:         "nothing allowed",
			args:         []string{"-x", "1"},
			allowedFlags: nil,
			want:         []string{},
		},
		{
			name:         "repeated flag keeps order",
			args:         []string{"-t", "1m", "-t", "2m"},
			allowedFlags: []string{"-t"},
			want:         []string{"-t", "1m", "-t", "2m"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestConfigPath(t *testing.T) {
	t.Run("short flag", func(t *testing.T) {
		assert.Equal(t, "/etc/a.json", ConfigPath([]string{"-c", "/etc/a.json", "-a", ":1"}, ""))
	})

	t.Run("long flag, last wins", func(t *testing.T) {
		assert.Equal(t, "/2.json", ConfigPath([]string{"-c", "/1.json", "-config", "/2.json"}, ""))
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv("VIDAUTH_TEST_CONFIG", "/env.json")
		assert.Equal(t, "/env.json", ConfigPath([]string{"-x"}, "VIDAUTH_TEST_CONFIG"))
		assert.Equal(t, "/flag.json", ConfigPath([]string{"-c", "/flag.json"}, "VIDAUTH_TEST_CONFIG"))
	})

	t.Run("nothing", func(t *testing.T) {
		assert.Empty(t, ConfigPath(nil, ""))
	})
}
