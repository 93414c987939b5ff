package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH0_DOMAIN", "tenant.eu.auth0.com")
	t.Setenv("AUTH0_AUDIENCE", "https://api.example.com")
	t.Setenv("AZURE_STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")

	cfg := Load()

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, int64(5242880), cfg.MaxFileSize)
	assert.Equal(t, int64(89478485), cfg.MaxImagePixels)
	assert.Equal(t, []string{"jpg", "jpeg", "png", "gif"}, cfg.AllowedExtensions)
	assert.Equal(t, StorageDriverAzure, cfg.StorageDriver)
	assert.Equal(t, "uploads", cfg.AzureContainer)
	assert.Equal(t, 5*time.Minute, cfg.JWKSCacheTTL)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH0_DOMAIN", "https://tenant.eu.auth0.com/")
	t.Setenv("AUTH0_AUDIENCE", "aud")
	t.Setenv("MAX_FILE_SIZE", "1024")
	t.Setenv("ALLOWED_EXTENSIONS", " .PNG, webp ,,")
	t.Setenv("AUTH0_JWKS_CACHE_TTL", "0s")
	t.Setenv("STORAGE_DRIVER", "MinIO")
	t.Setenv("STORAGE_ENDPOINT", "localhost:9000")

	cfg := Load()

	assert.Equal(t, "tenant.eu.auth0.com", cfg.AuthDomain)
	assert.Equal(t, "https://tenant.eu.auth0.com/.well-known/jwks.json", cfg.JWKSURL())
	assert.Equal(t, "https://tenant.eu.auth0.com/", cfg.Issuer())
	assert.Equal(t, int64(1024), cfg.MaxFileSize)
	assert.Equal(t, []string{"png", "webp"}, cfg.AllowedExtensions)
	assert.Equal(t, time.Duration(0), cfg.JWKSCacheTTL)
	assert.Equal(t, StorageDriverMinio, cfg.StorageDriver)
	require.NoError(t, cfg.Validate())
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Setenv("AUTH0_DOMAIN", "")
	t.Setenv("AUTH0_AUDIENCE", "")
	t.Setenv("MAX_FILE_SIZE", "five megabytes")
	t.Setenv("MAX_IMAGE_PIXELS", "0")
	t.Setenv("AUTH0_JWKS_TIMEOUT", "soon")
	t.Setenv("STORAGE_DRIVER", "ftp")

	err := Load().Validate()
	require.Error(t, err)

	msg := err.Error()
	for _, want := range []string{
		"AUTH0_DOMAIN is required",
		"AUTH0_AUDIENCE is required",
		"MAX_FILE_SIZE",
		"MAX_IMAGE_PIXELS",
		"AUTH0_JWKS_TIMEOUT",
		`unknown STORAGE_DRIVER "ftp"`,
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidate_AzureNeedsConnectionString(t *testing.T) {
	t.Setenv("AUTH0_DOMAIN", "tenant.auth0.com")
	t.Setenv("AUTH0_AUDIENCE", "aud")
	t.Setenv("STORAGE_DRIVER", "azure")
	t.Setenv("AZURE_STORAGE_CONNECTION_STRING", "")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AZURE_STORAGE_CONNECTION_STRING")
}
