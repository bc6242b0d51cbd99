package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlfredBerg/green-scraper/internal/auth"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestDefaults(t *testing.T) {
	c, err := Load(newViper())
	require.NoError(t, err)

	assert.False(t, c.Headless)
	assert.Equal(t, "Default", c.ProfileName)
	assert.Equal(t, 2, c.MaxRetries)
	assert.Equal(t, 5*time.Second, c.RetryDelay())
	assert.Equal(t, time.Second, c.ScrollPause())
	assert.Equal(t, 100, c.MaxScrolls)
	assert.Equal(t, auth.Direct, c.AuthStrategy())
	assert.Equal(t, "https://www.green-japan.com/favorites/sent", c.ListingURL())
	assert.Equal(t, []string{"xlsx", "table"}, c.Outputs)
	assert.Equal(t, auth.DefaultMarker, c.LoggedInMarker.Selector)
	assert.Empty(t, c.LoggedInMarker.Text)
	assert.Equal(t, "scraping.log", c.LogFile)
}

func TestFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "green.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
strategy: google
max_retries: 4
base_url: https://www.green-japan.com/
credentials:
  email: file@example.com
  password: from-file
delegated_credentials:
  email: g@example.com
outputs: [sqlite]
`), 0o600))
	t.Setenv("GREEN_MAX_RETRIES", "1")
	t.Setenv("GREEN_CREDENTIALS_PASSWORD", "from-env")

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, auth.Delegated, c.AuthStrategy())
	assert.Equal(t, 1, c.MaxRetries)
	assert.Equal(t, "https://www.green-japan.com", c.BaseURL)
	assert.Equal(t, []string{"sqlite"}, c.Outputs)

	creds := c.CredentialMap()
	assert.Equal(t, auth.Credentials{Email: "file@example.com", Password: "from-env"}, creds[auth.Direct])
	assert.Equal(t, auth.Credentials{Email: "g@example.com"}, creds[auth.Delegated])
}

func TestValidate(t *testing.T) {
	c, err := Load(newViper())
	require.NoError(t, err)

	c.MaxRetries = -1
	c.Strategy = "saml"
	c.Outputs = []string{"csv"}
	c.UseReusableProfile = true
	c.BaseURL = "green-japan.com"

	err = c.Validate()
	require.Error(t, err)
	for _, msg := range []string{"max_retries", "saml", "csv", "profile_path", "base_url"} {
		assert.ErrorContains(t, err, msg)
	}
}

func TestMaskedHidesPasswords(t *testing.T) {
	c := Config{Credentials: Credentials{Email: "a@example.com", Password: "secret"}}
	m := c.Masked()
	assert.Equal(t, "********", m.Credentials.Password)
	assert.Equal(t, "", m.DelegatedCredentials.Password)
	assert.Equal(t, "secret", c.Credentials.Password)
}
