// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT

// Package credential decodes server-issued PKCS#12 bundles into PEM
// certificate and key material. Bundles are always encrypted with the
// owning callsign as passphrase.
package credential

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"software.sslmate.com/src/go-pkcs12"
)

// DecodeError signals that a PKCS#12 bundle could not be turned into
// usable PEM material: wrong passphrase, no certificate, or a key
// algorithm we cannot re-encode.
type DecodeError struct {
	Reason string
	Err    error
}

func (o *DecodeError) Error() string {
	if o.Err == nil {
		return fmt.Sprintf("credential decode failed: %s", o.Reason)
	}
	return fmt.Sprintf("credential decode failed: %s: %v", o.Reason, o.Err)
}

func (o *DecodeError) Unwrap() error {
	return o.Err
}

// Decode decrypts the bundle with the given passphrase and returns the
// contained certificate and private key re-encoded as PEM. The key is
// emitted unencrypted in the traditional container for its algorithm.
func Decode(pfxData []byte, passphrase string) (certPEM, keyPEM []byte, err error) {
	key, cert, err := pkcs12.Decode(pfxData, passphrase)
	if err != nil {
		return nil, nil, &DecodeError{Reason: "could not decrypt bundle", Err: err}
	}

	return encodePEM(key, cert)
}

func encodePEM(key interface{}, cert *x509.Certificate) (certPEM, keyPEM []byte, err error) {
	// A decryptable bundle without a certificate is a server-side
	// contract violation, never accept it.
	if cert == nil {
		return nil, nil, &DecodeError{Reason: "bundle did not contain a certificate"}
	}

	keyBlock, err := keyToPEMBlock(key)
	if err != nil {
		return nil, nil, err
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	keyPEM = pem.EncodeToMemory(keyBlock)

	return certPEM, keyPEM, nil
}

func keyToPEMBlock(key interface{}) (*pem.Block, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return &pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(k),
		}, nil
	case *ecdsa.PrivateKey:
		der, err := x509.MarshalECPrivateKey(k)
		if err != nil {
			return nil, &DecodeError{Reason: "could not marshal EC key", Err: err}
		}
		return &pem.Block{
			Type:  "EC PRIVATE KEY",
			Bytes: der,
		}, nil
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported key type %T", key)}
	}
}
