package config

import (
	"log/slog"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(newViper(map[string]any{
		"jwt.secret":   "s",
		"database.url": "postgres://u:p@localhost:5432/gov",
	}))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.EqualValues(t, 10, cfg.Database.MaxConns)
	assert.EqualValues(t, 10<<20, cfg.Uploads.MaxBytes)
	assert.Equal(t, "log", cfg.Mail.Provider)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.False(t, cfg.IsProduction())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		wantErr string
	}{
		{"missing secret", map[string]any{"database.driver": "memory"}, "JWT_SECRET"},
		{"missing dsn", map[string]any{"jwt.secret": "s"}, "DATABASE_URL"},
		{"unknown driver", map[string]any{"jwt.secret": "s", "database.driver": "mysql"}, "unknown database driver"},
		{"memory needs no dsn", map[string]any{"jwt.secret": "s", "database.driver": "memory"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(newViper(tt.values))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSN(t *testing.T) {
	d := Database{User: "gov", Password: "pw", Host: "db", Port: "5432", Name: "govconnect"}
	assert.Equal(t, "postgres://gov:pw@db:5432/govconnect", d.DSN())
	d.URL = "postgres://override"
	assert.Equal(t, "postgres://override", d.DSN())
	assert.Empty(t, Database{}.DSN())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("UPLOAD_MAX_BYTES", "2048")
	cfg, err := Load("does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.EqualValues(t, 2048, cfg.Uploads.MaxBytes)
}
