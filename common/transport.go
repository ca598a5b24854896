// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT

package common

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
)

// LocalCACertsEnvVar names an optional PEM bundle of extra CA
// certificates that every transport created by this package will trust
// in addition to the system pool.
const LocalCACertsEnvVar = "LOCAL_CA_CERTS_PATH"

// NewCATransport returns a pointer to a new http.Transport with TLS
// config initialized with system certs as well as the extra CA bundle
// named by LOCAL_CA_CERTS_PATH (if set) and any explicitly specified
// certPaths.
func NewCATransport(certPaths ...string) (*http.Transport, error) {
	pool, err := caPool(certPaths)
	if err != nil {
		return nil, err
	}

	return &http.Transport{
		TLSClientConfig: &tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		},
	}, nil
}

// NewMTLSTransport is like NewCATransport but the resulting transport
// additionally presents the given client certificate on every
// connection.
func NewMTLSTransport(certFile, keyFile string, certPaths ...string) (*http.Transport, error) {
	pool, err := caPool(certPaths)
	if err != nil {
		return nil, err
	}

	clientCert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("could not load client certificate: %w", err)
	}

	return &http.Transport{
		TLSClientConfig: &tls.Config{
			RootCAs:      pool,
			Certificates: []tls.Certificate{clientCert},
			MinVersion:   tls.VersionTLS12,
		},
	}, nil
}

func caPool(certPaths []string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		return nil, err
	}

	if extra := os.Getenv(LocalCACertsEnvVar); extra != "" {
		certPaths = append([]string{extra}, certPaths...)
	}

	for _, certPath := range certPaths {
		rawCert, err := os.ReadFile(certPath)
		if err != nil {
			return nil, fmt.Errorf("could not read cert: %w", err)
		}

		if ok := pool.AppendCertsFromPEM(rawCert); !ok {
			return nil, fmt.Errorf("invalid cert in %s", certPath)
		}
	}

	return pool, nil
}
