// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// BearerAuthenticator encodes a previously obtained JWT as a Bearer
// Authorization header. The token is treated as opaque.
type BearerAuthenticator struct {
	Token string
}

func (o *BearerAuthenticator) Configure(cfg map[string]interface{}) error {
	decoded := struct {
		Token string                 `mapstructure:"token"`
		Rest  map[string]interface{} `mapstructure:",remain"`
	}{}

	if err := mapstructure.Decode(cfg, &decoded); err != nil {
		return err
	}

	o.Token = decoded.Token

	if err := o.validate(); err != nil {
		return err
	}

	if len(decoded.Rest) > 0 {
		var unexpected []string
		for k := range decoded.Rest {
			unexpected = append(unexpected, k)
		}
		return fmt.Errorf("unexpected fields in config: %s",
			strings.Join(unexpected, ", "))
	}

	return nil
}

func (o *BearerAuthenticator) EncodeHeader() (string, error) {
	if err := o.validate(); err != nil {
		return "", err
	}

	return fmt.Sprintf("Bearer %s", o.Token), nil
}

func (o *BearerAuthenticator) validate() error {
	if o.Token == "" {
		return errors.New("missing token")
	}

	return nil
}
