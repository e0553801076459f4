package configuration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestGetPlatform_MergesConfiguredCredentials(t *testing.T) {
	orig := C.OAuth
	defer func() { C.OAuth = orig }()
	C.OAuth = map[string]OAuthClient{
		"twitter": {ClientID: "cid", ClientSecret: "csecret", RedirectURI: "https://app.example/cb"},
	}

	p, ok := GetPlatform("Twitter")
	require.True(t, ok)
	assert.Equal(t, "twitter", p.Name)
	assert.Equal(t, "cid", p.ClientID)
	assert.Equal(t, "csecret", p.ClientSecret)
	assert.Equal(t, "https://app.example/cb", p.RedirectURI)
	assert.True(t, p.UsePKCE)
	assert.Equal(t, oauth2.AuthStyleInHeader, p.AuthStyle)
}

func TestGetPlatform_DefaultsRedirectURI(t *testing.T) {
	orig := C.OAuth
	origBase := C.App.BaseURL
	defer func() {
		C.OAuth = orig
		C.App.BaseURL = origBase
	}()
	C.OAuth = nil
	C.App.BaseURL = "https://pilot.example"

	p, ok := GetPlatform("linkedin")
	require.True(t, ok)
	assert.Equal(t, "https://pilot.example/auth/linkedin/callback", p.RedirectURI)
}

func TestGetPlatform_Unknown(t *testing.T) {
	_, ok := GetPlatform("myspace")
	assert.False(t, ok)
}

func TestPlatformNames(t *testing.T) {
	names := PlatformNames()
	assert.Len(t, names, 4)
	assert.Contains(t, names, "facebook")
	assert.Contains(t, names, "reddit")
}
