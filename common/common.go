// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT

package common

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DecodeJSONBody decodes the response body into j and closes it.
func DecodeJSONBody(res *http.Response, j interface{}) error {
	defer res.Body.Close()

	return json.NewDecoder(res.Body).Decode(&j)
}

// ReadBody reads the raw response body (e.g. a PKCS#12 download) and
// closes it.
func ReadBody(res *http.Response) ([]byte, error) {
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failure reading response body: %w", err)
	}

	return raw, nil
}
