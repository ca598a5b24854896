package common

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvarki/rmcli/auth"
)

func TestNewSession_normalizes_base_url(t *testing.T) {
	s1, err := NewSession("https://rasenmaeher.example/", 5*time.Second)
	require.NoError(t, err)
	defer s1.Close()

	s2, err := NewSession("https://rasenmaeher.example", 5*time.Second)
	require.NoError(t, err)
	defer s2.Close()

	assert.Equal(t, s2.BaseURL(), s1.BaseURL())
	assert.Equal(t, "https://rasenmaeher.example", s1.BaseURL())
}

func TestSession_request_headers(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Empty(t, r.Header.Get("Authorization"))

		w.WriteHeader(http.StatusOK)
	})

	s, teardown := NewTestingSession(h)
	defer teardown()

	res, err := s.Get(context.Background(), "/api/v1/check-auth/mtls_or_jwt")
	require.NoError(t, err)
	assert.NoError(t, CheckResponse(res, http.StatusOK))
}

func TestSession_user_agent(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rmcli/1.2.3", r.Header.Get("User-Agent"))

		w.WriteHeader(http.StatusOK)
	})

	s, teardown := NewTestingSession(h)
	defer teardown()

	s.SetUserAgent("rmcli/1.2.3")

	res, err := s.Get(context.Background(), "/api/v1/check-auth/mtls_or_jwt")
	require.NoError(t, err)
	assert.NoError(t, CheckResponse(res, http.StatusOK))
}

func TestCheckResponse_plain_body(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such callsign"))
	})

	s, teardown := NewTestingSession(h)
	defer teardown()

	res, err := s.Get(context.Background(), "/api/v1/people/NOBODY")
	require.NoError(t, err)

	err = CheckResponse(res, http.StatusOK)

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusNotFound, herr.Status)
	assert.Equal(t, "no such callsign", herr.Body)
}

func TestCheckResponse_problem_detail(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"title":"Forbidden","status":403,"detail":"code already used"}`))
	})

	s, teardown := NewTestingSession(h)
	defer teardown()

	res, err := s.Get(context.Background(), "/api/v1/token/code/exchange")
	require.NoError(t, err)

	err = CheckResponse(res, http.StatusOK)

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusForbidden, herr.Status)
	assert.Equal(t, "code already used", herr.Body)
}

func TestExchangeLoginCode_sets_bearer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/token/code/exchange", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "C1", body["code"])

		_, _ = w.Write([]byte(`{"jwt":"T"}`))
	})
	mux.HandleFunc("/api/v1/check-auth/mtls_or_jwt", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer T", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"userid":"alice"}`))
	})

	s, teardown := NewTestingSession(mux)
	defer teardown()

	require.NoError(t, s.ExchangeLoginCode(context.Background(), "C1"))

	res, err := s.Get(context.Background(), "/api/v1/check-auth/mtls_or_jwt")
	require.NoError(t, err)
	assert.NoError(t, CheckResponse(res, http.StatusOK))
}

func TestSetBearer_empty_token_rejected(t *testing.T) {
	s, err := NewSession("https://rasenmaeher.example", time.Second)
	require.NoError(t, err)
	defer s.Close()

	err = s.SetBearer("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing token")
	assert.IsType(t, &auth.NullAuthenticator{}, s.authn)
}

func TestExchangeLoginCode_missing_jwt(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	s, teardown := NewTestingSession(h)
	defer teardown()

	err := s.ExchangeLoginCode(context.Background(), "C1")

	var xerr *AuthExchangeError
	require.ErrorAs(t, err, &xerr)
}

func TestExchangeLoginCode_rejected(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	s, teardown := NewTestingSession(h)
	defer teardown()

	err := s.ExchangeLoginCode(context.Background(), "C1")

	var xerr *AuthExchangeError
	require.ErrorAs(t, err, &xerr)

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusForbidden, herr.Status)
}

// countingTransport records how many times it has been closed.
type countingTransport struct {
	closed int
}

func (o *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("not implemented")
}

func (o *countingTransport) CloseIdleConnections() {
	o.closed++
}

func TestBindIdentity_closes_previous_transport_once(t *testing.T) {
	s, err := NewSession("https://rasenmaeher.example", time.Second)
	require.NoError(t, err)

	counter := &countingTransport{}
	s.hc = &http.Client{Transport: counter}
	require.NoError(t, s.SetBearer("stale"))

	certFile, keyFile := makeIdentityFiles(t)

	require.NoError(t, s.BindIdentity(certFile, keyFile))
	assert.Equal(t, 1, counter.closed)
	assert.IsType(t, &auth.NullAuthenticator{}, s.authn)

	// rebinding again must not touch the first transport a second time
	require.NoError(t, s.BindIdentity(certFile, keyFile))
	assert.Equal(t, 1, counter.closed)

	s.Close()
	s.Close()
	assert.Equal(t, 1, counter.closed)
}

func TestBindIdentity_bad_files(t *testing.T) {
	s, err := NewSession("https://rasenmaeher.example", time.Second)
	require.NoError(t, err)
	defer s.Close()

	err = s.BindIdentity("nonexistent.crt", "nonexistent.key")
	assert.ErrorContains(t, err, "could not bind identity")
}

func TestSession_closed(t *testing.T) {
	s, err := NewSession("https://rasenmaeher.example", time.Second)
	require.NoError(t, err)
	s.Close()

	_, err = s.Get(context.Background(), "/api/v1/people/list")
	assert.EqualError(t, err, "session is closed")
}

func makeIdentityFiles(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "OTTER11a"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile = filepath.Join(dir, "client.crt")
	keyFile = filepath.Join(dir, "client.key")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))

	return certFile, keyFile
}
