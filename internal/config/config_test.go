package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		DBSSLMode:                "disable",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBPassword:               "secure-password",
		Port:                     "8080",
		DocumentMaxUploadMB:      5,
		DBConnMaxLifetimeMinutes: 1,
		RedisURL:                 "redis://localhost:6379",
		StorageDriver:            "file",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with empty SSL mode", "prod", "", true},
		{"Prod with disable SSL mode", "prod", "disable", true},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateStorageAndSchema(t *testing.T) {
	c := validConfig()
	c.StorageDriver = "s3"
	assert.Error(t, c.Validate(), "s3 without bucket")

	c.S3Bucket = "documents"
	assert.NoError(t, c.Validate())

	c.StorageDriver = "ftp"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.DBSchemaMode = "yolo"
	assert.Error(t, c.Validate())

	c = validConfig()
	c.DocumentMaxUploadMB = 0
	assert.Error(t, c.Validate())
}

func TestConfig_ProductionRejectsBootstrapOperators(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.DBSSLMode = "require"
	c.DevBootstrapOperators = "admin:admin"
	assert.Error(t, c.Validate())
}

func TestLoadConfig_SSLModeNormalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 12, c.TokenTTLHours)
	assert.Equal(t, "file", c.StorageDriver)
}

func TestConfig_Profiles(t *testing.T) {
	for env, dev := range map[string]bool{"": true, "development": true, "test": true, "stress": true, "staging": false, "production": false} {
		c := &Config{Env: env}
		assert.Equal(t, dev, c.IsDevelopment(), env)
	}
	assert.True(t, (&Config{Env: "prod"}).IsProduction())
	assert.False(t, (&Config{Env: "staging"}).IsProduction())
}

func TestLoadConfig_LogLevelDefault(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "test")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "info", c.LogLevel)
}
