package httputil

import (
	"net/http"
	"net/http/cookiejar"
	"time"
)

const DefaultTimeout = 30 * time.Second

// NewClient returns an HTTP client with standard timeout configuration
// and a cookie jar. The jar matters: the license acceptance retry must
// carry the session cookies from the challenge response.
func NewClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: DefaultTimeout,
		Jar:     jar,
	}
}
