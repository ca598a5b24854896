// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT

package common

import "fmt"

// AuthExchangeError signals that a login code could not be exchanged
// for a usable bearer token, either because the server rejected the
// code or because the response lacked a token.
type AuthExchangeError struct {
	Err error
}

func (o *AuthExchangeError) Error() string {
	return fmt.Sprintf("login code exchange failed: %v", o.Err)
}

func (o *AuthExchangeError) Unwrap() error {
	return o.Err
}
