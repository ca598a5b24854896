// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT
package auth

// NullAuthenticator is the anonymous state: no Authorization header.
// It is also what a Session falls back to after rebinding its
// transport to an mTLS identity.
type NullAuthenticator struct{}

func (o *NullAuthenticator) Configure(cfg map[string]interface{}) error {
	return nil
}

func (o *NullAuthenticator) EncodeHeader() (string, error) {
	return "", nil
}
