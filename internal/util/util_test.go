package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

func TestErrorText_MediaWikiPage(t *testing.T) {
	body := []byte(`<!DOCTYPE html><html><head><title>Error</title><style>p{}</style></head>
<body><div id="mw-navigation">Menu</div>
<div id="mw-content-text"><p>Error: <b>mwoauth-invalid-authorization</b></p>
<script>var x = 1;</script><p>The authorization headers in your request are not valid.</p></div></body></html>`)

	got := ErrorText(body, 0)
	assert.Equal(t, "Error: mwoauth-invalid-authorization The authorization headers in your request are not valid.", got)
}

func TestErrorText_PlainAndTruncated(t *testing.T) {
	assert.Equal(t, "Invalid consumer", ErrorText([]byte("  Invalid   consumer\n"), 0))
	assert.Equal(t, "abc", ErrorText([]byte("abcdef"), 3))
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "http://secure.local:3128", "wikidata.org")

	req := httptest.NewRequest(http.MethodGet, "https://example.org/x", nil)
	u, err := proxy(req)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "secure.local:3128", u.Host)

	req = httptest.NewRequest(http.MethodGet, "https://www.wikidata.org/w/api.php", nil)
	u, err = proxy(req)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(model.HTTPConfig{Timeout: 3 * time.Second})
	assert.Equal(t, 3*time.Second, client.Timeout)
	require.NotNil(t, client.Transport)
}
