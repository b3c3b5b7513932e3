package urlutil

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPath(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		paths   []string
		want    string
		wantErr bool
	}{
		{
			name:  "helix users",
			base:  "https://api.twitch.tv/helix",
			paths: []string{"users"},
			want:  "https://api.twitch.tv/helix/users",
		},
		{
			name:  "base with trailing slash",
			base:  "https://api.twitch.tv/helix/",
			paths: []string{"users"},
			want:  "https://api.twitch.tv/helix/users",
		},
		{
			name:  "trailing slash preserved",
			base:  "http://127.0.0.1:3000",
			paths: []string{"callback", "result/"},
			want:  "http://127.0.0.1:3000/callback/result/",
		},
		{
			name:  "empty paths",
			base:  "https://id.twitch.tv",
			paths: []string{},
			want:  "https://id.twitch.tv",
		},
		{
			name:    "invalid base URL",
			base:    "://invalid",
			paths:   []string{"users"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinPath(tt.base, tt.paths...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoopbackURL(t *testing.T) {
	tests := []struct {
		name  string
		host  string
		bound net.Addr
		path  string
		want  string
	}{
		{
			name:  "configured host kept",
			host:  "localhost",
			bound: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 3000},
			path:  "/callback",
			want:  "http://localhost:3000/callback",
		},
		{
			name:  "bound host used when unset",
			bound: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 41234},
			path:  "callback",
			want:  "http://127.0.0.1:41234/callback",
		},
		{
			name:  "wildcard becomes localhost",
			host:  "0.0.0.0",
			bound: &net.TCPAddr{IP: net.IPv4zero, Port: 8080},
			path:  "/callback",
			want:  "http://localhost:8080/callback",
		},
		{
			name:  "ipv6 loopback",
			bound: &net.TCPAddr{IP: net.IPv6loopback, Port: 3000},
			path:  "/callback",
			want:  "http://[::1]:3000/callback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoopbackURL(tt.host, tt.bound, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateHTTPURL(t *testing.T) {
	assert.NoError(t, ValidateHTTPURL("https://id.twitch.tv/oauth2/authorize"))
	assert.NoError(t, ValidateHTTPURL("http://localhost:3000/callback"))
	assert.Error(t, ValidateHTTPURL("id.twitch.tv/oauth2"))
	assert.Error(t, ValidateHTTPURL("ftp://example.com"))
	assert.Error(t, ValidateHTTPURL("https://"))
	assert.Error(t, ValidateHTTPURL("://bad"))
}

func TestOrigin(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "http://localhost:3000/callback", want: "http://localhost:3000"},
		{raw: "HTTP://LocalHost:3000/auth/twitch/", want: "http://localhost:3000"},
		{raw: "http://localhost:80/callback", want: "http://localhost"},
		{raw: "https://example.com:443/cb", want: "https://example.com"},
		{raw: "http://[::1]:3000/callback", want: "http://[::1]:3000"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Origin(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Origin("/callback")
	assert.Error(t, err)
}
