// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT
package auth

// IAuthenticator yields the Authorization header value for outgoing
// requests. An empty header value means no Authorization header is set.
type IAuthenticator interface {
	Configure(cfg map[string]interface{}) error
	EncodeHeader() (string, error)
}
