package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBaseDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "Unknown"},
		{"   ", "Unknown"},
		{"https://www.google.com", "google.com"},
		{"http://example.org/path/to/page", "example.org"},
		{"https://login.microsoft.com/login", "microsoft.com"},
		{"google.com", "google.com"},
		{"www.example.org", "example.org"},
		{"WWW.Example.ORG", "example.org"},
		{"https://accounts.google.co.uk", "google.co.uk"},
		{"https://shop.example.com.br/cart", "example.com.br"},
		{"login.gov.br", "login.gov.br"},
		{"https://a.b.example.io", "example.io"},
		{"https://example.com:8443/x?y=1", "example.com"},
		{"https://user:pw@mail.example.net", "example.net"},
		{"ssh://git@github.com:user/repo.git", "github.com"},
		{"androidapp://com.twitter.android", "twitter.android"},
		{"ftp://files.example.org/pub", "example.org"},
		{"ssh://myhost", "Unknown"},
		{"192.168.1.1", "192.168.1.1"},
		{"http://10.0.0.1:8080/admin", "10.0.0.1"},
		{"http://[::1]:8080/", "::1"},
		{"https://münchen.de", "xn--mnchen-3ya.de"},
		{"invalid-url-format", "Unknown"},
		{"localhost", "Unknown"},
		{"http://.com", "Unknown"},
		{"not a url.", "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBaseDomain(tt.in))
		})
	}
}

func TestExtractorIsDeterministic(t *testing.T) {
	e := NewExtractor()
	for i := 0; i < 3; i++ {
		assert.Equal(t, "google.co.uk", e.BaseDomain("https://accounts.google.co.uk/signin"))
	}
}
