package movebank

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

const testCSV = "individual_id,timestamp,location_lat,location_long\n1,20240101000000000,60.1,24.9\n"

const testLicenseBody = "License Terms:\nBy downloading this data you agree to the study license.\n"

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(
		Credentials{Username: "user", Password: "pass"},
		WithBaseURL(srv.URL),
		WithRetryTimeout(200*time.Millisecond),
	)
}

func fetchAll(t *testing.T, c *Client, params url.Values) (string, error) {
	t.Helper()
	body, err := c.Fetch(context.Background(), params)
	if err != nil {
		return "", err
	}
	defer body.Close()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b), nil
}

func TestClient_Fetch_BasicAuth(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		io.WriteString(w, testCSV)
	}))
	defer srv.Close()

	got, err := fetchAll(t, testClient(t, srv), url.Values{"entity_type": {"study"}})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != testCSV {
		t.Errorf("body = %q, want %q", got, testCSV)
	}
	if gotUser != "user" || gotPass != "pass" {
		t.Errorf("basic auth = %q/%q, want user/pass", gotUser, gotPass)
	}
}

func TestClient_Fetch_LicenseChallenge(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			io.WriteString(w, testLicenseBody)
			return
		}
		// The retry must carry the md5 of the exact challenge payload.
		sum := md5.Sum([]byte(testLicenseBody))
		if got := r.URL.Query().Get("license-md5"); got != hex.EncodeToString(sum[:]) {
			t.Errorf("license-md5 = %q, want %q", got, hex.EncodeToString(sum[:]))
		}
		io.WriteString(w, testCSV)
	}))
	defer srv.Close()

	got, err := fetchAll(t, testClient(t, srv), url.Values{"entity_type": {"event"}})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != testCSV {
		t.Errorf("body = %q, want data table after acceptance", got)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want exactly 2", calls)
	}
}

func TestClient_Fetch_MarkerInsideDataIsNotChallenge(t *testing.T) {
	// A data row may legitimately contain the marker phrase; only a body
	// that opens with it is a challenge.
	const body = "individual_id,comments\n1,\"License Terms: see study page\"\n"
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, body)
	}))
	defer srv.Close()

	got, err := fetchAll(t, testClient(t, srv), url.Values{"entity_type": {"event"}})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != body {
		t.Errorf("body = %q, want the table passed through", got)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no acceptance retry)", calls)
	}
}

func TestClient_Fetch_DoubleChallengeFails(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, testLicenseBody)
	}))
	defer srv.Close()

	_, err := fetchAll(t, testClient(t, srv), url.Values{"entity_type": {"event"}})
	if !errors.Is(err, ErrLicenseAcceptance) {
		t.Fatalf("err = %v, want ErrLicenseAcceptance", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want exactly 2 (no third attempt)", calls)
	}
}

func TestClient_Fetch_ForbiddenOnLicenseRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			io.WriteString(w, testLicenseBody)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := fetchAll(t, testClient(t, srv), url.Values{"entity_type": {"event"}})
	if !errors.Is(err, ErrLicenseAcceptance) {
		t.Fatalf("err = %v, want ErrLicenseAcceptance (hash rejected)", err)
	}
}

func TestClient_Fetch_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAccessDenied},
		{"forbidden", http.StatusForbidden, ErrAccessDenied},
		{"not found", http.StatusNotFound, ErrNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := fetchAll(t, testClient(t, srv), url.Values{"entity_type": {"study"}})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_Fetch_ServerErrorRetriedThenSurfaced(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// The retry window must fit at least one backoff interval.
	c := NewClient(
		Credentials{Username: "user", Password: "pass"},
		WithBaseURL(srv.URL),
		WithRetryTimeout(2*time.Second),
	)
	_, err := fetchAll(t, c, url.Values{"entity_type": {"study"}})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if te.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", te.Status)
	}
	if calls < 2 {
		t.Errorf("calls = %d, want at least one retry", calls)
	}
}

func TestClient_Fetch_BadRequestNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, "invalid attribute name")
	}))
	defer srv.Close()

	_, err := fetchAll(t, testClient(t, srv), url.Values{"entity_type": {"event"}})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if te.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", te.Status)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (client errors are permanent)", calls)
	}
}
