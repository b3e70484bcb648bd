package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CENSORED_WORDS", " spam, ,scam ")

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal(8080, config.Port)
	req.Equal(9090, config.GrpcPort)
	req.Equal(24*time.Hour, config.AuthTokenDuration)
	req.Equal(50, config.HistoryDefaultLimit)
	req.Equal(100, config.HistoryMaxLimit)
	req.Equal([]string{"spam", "scam"}, config.Words())
	r, err := CharacterRune(config.CharReplacement)
	req.NoError(err)
	req.Equal('*', r)
}

func TestLoadConfig_Rejections(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"Missing secret", map[string]string{"BADGER_FILEPATH": "/tmp/db"}},
		{"Replacement is not one rune", map[string]string{"BADGER_FILEPATH": "/tmp/db", "JWT_SECRET": "s", "CHARACTER_REPLACEMENT": "**"}},
		{"Inverted history limits", map[string]string{"BADGER_FILEPATH": "/tmp/db", "JWT_SECRET": "s", "HISTORY_DEFAULT_LIMIT": "10", "HISTORY_MAX_LIMIT": "5"}},
		{"Empty buffer", map[string]string{"BADGER_FILEPATH": "/tmp/db", "JWT_SECRET": "s", "CONNECTION_BUFFER_SIZE": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}
