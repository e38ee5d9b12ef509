package httpclient

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c := New(Options{Timeout: 30 * time.Second})

	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, 10, c.maxRedirects)
	assert.Equal(t, []string{"http", "https"}, c.allowedSchemes)
	assert.False(t, c.blockPrivateIP)
	assert.Equal(t, DefaultUserAgent, c.userAgent)
	assert.Nil(t, c.Transport)
}

func TestNew_BlockPrivateIPInstallsTransport(t *testing.T) {
	c := New(Options{BlockPrivateIP: true})
	assert.NotNil(t, c.Transport)
}

func TestValidateURL(t *testing.T) {
	guarded := New(Options{BlockPrivateIP: true})
	open := New(Options{})

	tests := []struct {
		name        string
		client      *Client
		url         string
		errContains string
	}{
		{name: "https", client: guarded, url: "https://hub.berdl.kbase.us/apis/mcp"},
		{name: "public ip", client: guarded, url: "http://8.8.8.8/"},
		{name: "file scheme", client: guarded, url: "file:///etc/passwd", errContains: "scheme"},
		{name: "ftp scheme", client: open, url: "ftp://example.com", errContains: "scheme"},
		{name: "localhost", client: guarded, url: "http://localhost/admin", errContains: "localhost"},
		{name: "localhost subdomain", client: guarded, url: "http://admin.localhost/", errContains: "localhost"},
		{name: "loopback ip", client: guarded, url: "http://127.0.0.1/", errContains: "private IP"},
		{name: "rfc1918", client: guarded, url: "http://10.0.0.1/", errContains: "private IP"},
		{name: "metadata", client: guarded, url: "http://169.254.169.254/latest", errContains: "private IP"},
		{name: "private allowed when open", client: open, url: "http://10.58.1.4:8000/apis/mcp"},
		{name: "userinfo", client: open, url: "http://evil.com@localhost/", errContains: "userinfo"},
		{name: "missing host", client: open, url: "http:///path", errContains: "hostname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.ValidateURL(tt.url)
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"10.255.255.255", true},
		{"172.31.255.255", true},
		{"192.168.0.1", true},
		{"127.0.0.1", true},
		{"169.254.169.254", true},
		{"0.0.0.0", true},
		{"224.0.0.1", true},
		{"240.0.0.1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"::1", true},
		{"fe80::1", true},
		{"fc00::1", true},
		{"fd12:3456::1", true},
		{"2001:db8::1", true},
		{"2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			require.NotNil(t, ip)
			assert.Equal(t, tt.private, isPrivateIP(ip))
		})
	}
}

func TestIsLocalhost(t *testing.T) {
	assert.True(t, isLocalhost("LOCALHOST"))
	assert.True(t, isLocalhost("localhost.localdomain"))
	assert.True(t, isLocalhost("test.localhost"))
	assert.False(t, isLocalhost("local.host"))
	assert.False(t, isLocalhost("example.com"))
}

func TestDo_SetsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(Options{Timeout: 5 * time.Second, UserAgent: "lineage-test"})
	req, err := http.NewRequest(http.MethodPost, server.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "lineage-test", gotUA)
}

func TestDo_BlockedRequest(t *testing.T) {
	c := New(Options{BlockPrivateIP: true})
	req, err := http.NewRequest(http.MethodGet, "http://localhost/", nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request blocked")
}

func TestMaxRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer server.Close()

	c := New(Options{Timeout: 5 * time.Second, MaxRedirects: 3})
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 3 redirects")
}

func TestWrap(t *testing.T) {
	inner := &http.Client{Timeout: time.Second}
	c := Wrap(inner)
	assert.Same(t, inner, c.Client)
	assert.False(t, c.blockPrivateIP)
}
