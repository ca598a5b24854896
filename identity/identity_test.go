package identity

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvarki/rmcli/common"
	"github.com/pvarki/rmcli/credential"
)

func TestWhoami_after_code_exchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/token/code/exchange", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jwt":"T"}`))
	})
	mux.HandleFunc("/api/v1/check-auth/mtls_or_jwt", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer T", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"userid":"alice"}`))
	})

	s, teardown := common.NewTestingSession(mux)
	defer teardown()

	require.NoError(t, s.ExchangeLoginCode(context.Background(), "C1"))

	callsign, err := Whoami(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "alice", callsign)
}

func TestWhoami_unauthenticated(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	s, teardown := common.NewTestingSession(h)
	defer teardown()

	_, err := Whoami(context.Background(), s)

	var herr *common.HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusForbidden, herr.Status)
}

func TestFetchOwnCertificate_resolves_callsign(t *testing.T) {
	pfx, err := credential.NewTestingBundle("alice", "alice")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/check-auth/mtls_or_jwt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"userid":"alice"}`))
	})
	mux.HandleFunc("/api/v1/enduserpfx/alice.pfx", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pfx)
	})

	s, teardown := common.NewTestingSession(mux)
	defer teardown()

	certPEM, keyPEM, err := FetchOwnCertificate(context.Background(), s, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(certPEM), "-----BEGIN CERTIFICATE-----"))
	assert.Contains(t, string(keyPEM), "PRIVATE KEY")
}

func TestFetchOwnCertificate_missing_bundle(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	s, teardown := common.NewTestingSession(h)
	defer teardown()

	_, _, err := FetchOwnCertificate(context.Background(), s, "bob")

	var herr *common.HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusNotFound, herr.Status)
}
