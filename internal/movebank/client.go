package movebank

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/movefetch/internal/httputil"
	"github.com/lox/movefetch/internal/metrics"
)

// DefaultBaseURL is Movebank's single download endpoint. Every entity
// type is fetched through it, parameterized by query string.
const DefaultBaseURL = "https://www.movebank.org/movebank/service/direct-read"

// licenseMarker distinguishes a license-acceptance challenge from a data
// table. The service sends it with HTTP 200, as plain text opening with
// the marker. Only the start of the body counts: a data row that happens
// to contain the phrase must not trigger acceptance.
const licenseMarker = "License Terms:"

// licensePeekSize bounds how much of a 200 body is buffered to check for
// the marker before the stream is handed to the caller.
const licensePeekSize = 4096

const defaultRetryTimeout = 2 * time.Minute

// Client issues authenticated requests against the direct-read endpoint,
// transparently accepting license terms when challenged. It has no
// knowledge of the CSV schema; callers get the raw body stream.
type Client struct {
	baseURL      string
	creds        Credentials
	httpClient   *http.Client
	retryTimeout time.Duration
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryTimeout bounds the total time spent retrying one request.
func WithRetryTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.retryTimeout = d }
}

func NewClient(creds Credentials, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		creds:        creds,
		httpClient:   httputil.NewClient(),
		retryTimeout: defaultRetryTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs one GET with the given query parameters and returns the
// response body stream. A license challenge is answered once by
// reissuing the identical request with a license-md5 parameter computed
// from the challenge payload; a second challenge fails with
// ErrLicenseAcceptance rather than looping.
func (c *Client) Fetch(ctx context.Context, params url.Values) (io.ReadCloser, error) {
	entity := params.Get("entity_type")
	start := time.Now()

	body, err := c.fetch(ctx, params)
	metrics.APILatency.WithLabelValues(entity).Observe(time.Since(start).Seconds())
	metrics.APICallsTotal.WithLabelValues(entity, statusLabel(err)).Inc()
	return body, err
}

func (c *Client) fetch(ctx context.Context, params url.Values) (io.ReadCloser, error) {
	resp, err := c.do(ctx, params)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(resp.Body, licensePeekSize)
	challenge, err := peekLicenseChallenge(br)
	if err != nil {
		resp.Body.Close()
		return nil, &TransportError{Err: fmt.Errorf("read body: %w", err)}
	}
	if !challenge {
		return readCloser{br, resp.Body}, nil
	}

	// License challenge: hash the full challenge payload and reissue the
	// request with the acceptance parameter.
	payload, err := io.ReadAll(br)
	resp.Body.Close()
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read license terms: %w", err)}
	}

	sum := md5.Sum(payload)
	retry := cloneValues(params)
	retry.Set("license-md5", hex.EncodeToString(sum[:]))

	resp, err = c.do(ctx, retry)
	if err != nil {
		// 403 on the acceptance retry means the service rejected the
		// hash, not that study permission changed.
		if errors.Is(err, ErrAccessDenied) {
			return nil, fmt.Errorf("%w: service rejected license-md5", ErrLicenseAcceptance)
		}
		return nil, err
	}

	br = bufio.NewReaderSize(resp.Body, licensePeekSize)
	challenge, err = peekLicenseChallenge(br)
	if err != nil {
		resp.Body.Close()
		return nil, &TransportError{Err: fmt.Errorf("read body: %w", err)}
	}
	if challenge {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: service challenged twice", ErrLicenseAcceptance)
	}

	metrics.LicenseAcceptsTotal.Inc()
	return readCloser{br, resp.Body}, nil
}

// do issues the request, retrying network-level and throttling failures
// with exponential backoff. Auth failures, missing data and other client
// errors are permanent.
func (c *Client) do(ctx context.Context, params url.Values) (*http.Response, error) {
	var resp *http.Response

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return backoff.Permanent(&TransportError{Err: err})
		}
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
		req.Header.Set("User-Agent", "movefetch/1.0")

		r, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}

		switch {
		case r.StatusCode == http.StatusOK:
			resp = r
			return nil
		case r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden:
			r.Body.Close()
			return backoff.Permanent(fmt.Errorf("%w: status %d", ErrAccessDenied, r.StatusCode))
		case r.StatusCode == http.StatusNotFound:
			r.Body.Close()
			return backoff.Permanent(ErrNoData)
		case r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500:
			r.Body.Close()
			return &TransportError{Status: r.StatusCode}
		default:
			snippet, _ := io.ReadAll(io.LimitReader(r.Body, 512))
			r.Body.Close()
			return backoff.Permanent(&TransportError{
				Status: r.StatusCode,
				Err:    fmt.Errorf("%s", bytes.TrimSpace(snippet)),
			})
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.retryTimeout
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return nil, te
		}
		if IsFatal(err) || errors.Is(err, ErrNoData) {
			return nil, err
		}
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}

func peekLicenseChallenge(br *bufio.Reader) (bool, error) {
	peek, err := br.Peek(licensePeekSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return bytes.HasPrefix(bytes.TrimLeft(peek, " \t\r\n"), []byte(licenseMarker)), nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrAccessDenied):
		return "denied"
	case errors.Is(err, ErrLicenseAcceptance):
		return "license"
	default:
		return "error"
	}
}

// readCloser pairs the buffered reader (which may hold peeked bytes)
// with the underlying response body's Close.
type readCloser struct {
	io.Reader
	io.Closer
}
