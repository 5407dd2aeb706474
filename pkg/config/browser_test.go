package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserSection_Defaults(t *testing.T) {
	section := NewBrowserSection()

	assert.True(t, section.Headless)
	assert.Equal(t, DefaultLaunchTimeoutSeconds, section.LaunchTimeoutSeconds)
	assert.Equal(t, DefaultMaxInstances, section.MaxInstances)
	assert.NoError(t, section.Validate())
}

func TestBrowserSection_SetData(t *testing.T) {
	section := NewBrowserSection()

	err := section.SetData(map[string]interface{}{
		"headless":               false,
		"launch_timeout_seconds": float64(45),
		"max_instances":          float64(3),
		"profiles_dir":           "/tmp/profiles",
		"allowed_domains":        []interface{}{"*.example.com", "shop.test"},
	})

	require.NoError(t, err)
	assert.False(t, section.Headless)
	assert.Equal(t, 45, section.LaunchTimeoutSeconds)
	assert.Equal(t, 3, section.MaxInstances)
	assert.Equal(t, "/tmp/profiles", section.ProfilesDir)
	assert.Equal(t, []string{"*.example.com", "shop.test"}, section.AllowedDomains)
}

func TestBrowserSection_SetDataRejectsBadDomainEntry(t *testing.T) {
	section := NewBrowserSection()

	err := section.SetData(map[string]interface{}{
		"allowed_domains": []interface{}{"ok.test", 42},
	})
	assert.Error(t, err)
}

func TestBrowserSection_Validate(t *testing.T) {
	section := NewBrowserSection()
	section.LaunchTimeoutSeconds = 0
	assert.Error(t, section.Validate())

	section.Reset()
	section.MaxInstances = -1
	assert.Error(t, section.Validate())

	section.Reset()
	section.AllowedDomains = []string{"[invalid"}
	assert.Error(t, section.Validate())
}

func TestBrowserSection_Allowed(t *testing.T) {
	section := NewBrowserSection()

	t.Run("empty list allows everything", func(t *testing.T) {
		assert.NoError(t, section.Allowed("https://anywhere.test/page"))
	})

	t.Run("glob patterns match hostnames", func(t *testing.T) {
		require.NoError(t, section.SetData(map[string]interface{}{
			"allowed_domains": []interface{}{"*.example.com", "shop.test"},
		}))

		assert.NoError(t, section.Allowed("https://app.example.com/login"))
		assert.NoError(t, section.Allowed("https://shop.test/cart"))
		assert.Error(t, section.Allowed("https://evil.test/"))
		// The pattern has no subdomain wildcard for the bare apex.
		assert.Error(t, section.Allowed("https://example.com/"))
	})

	t.Run("unparseable url is rejected", func(t *testing.T) {
		assert.Error(t, section.Allowed("not a url"))
	})
}

func TestBrowserSection_DataRoundTrip(t *testing.T) {
	section := NewBrowserSection()
	section.AllowedDomains = []string{"a.test"}
	section.Headless = false

	fresh := NewBrowserSection()
	require.NoError(t, fresh.SetData(section.Data()))

	assert.False(t, fresh.Headless)
	assert.Equal(t, []string{"a.test"}, fresh.AllowedDomains)
}
