// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT

// Package directory implements the operations available to an already
// enrolled identity: listing callsigns, revoking them, and fetching
// per-product user files.
package directory

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pvarki/rmcli/common"
)

// UserFile is one downloadable artifact belonging to a product.
type UserFile struct {
	Title    string
	Filename string
	Content  []byte
}

// MalformedFileError signals a file manifest entry whose data field
// does not follow the expected data-URI shape.
type MalformedFileError struct {
	Product  string
	Filename string
	Detail   string
}

func (o *MalformedFileError) Error() string {
	return fmt.Sprintf("malformed file entry %q for product %q: %s", o.Filename, o.Product, o.Detail)
}

// person models one entry of the people/list response
type person struct {
	Callsign string   `json:"callsign"`
	Roles    []string `json:"roles"`
}

// peopleListResponse models the people/list response body
type peopleListResponse struct {
	CallsignList []person `json:"callsign_list"`
}

// revokeResponse models the people/{callsign} DELETE response body
type revokeResponse struct {
	Success bool `json:"success"`
}

// filesResponse models the instructions/user response body
type filesResponse struct {
	Files map[string][]fileEntry `json:"files"`
}

type fileEntry struct {
	Title    string `json:"title"`
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

// ListIdentities returns one display string per known callsign, in
// server order. Entries carrying roles render as
// "callsign (role1 role2)", the rest as the bare callsign.
func ListIdentities(ctx context.Context, s *common.Session) ([]string, error) {
	res, err := s.Get(ctx, "/api/v1/people/list")
	if err != nil {
		return nil, fmt.Errorf("people list request failed: %w", err)
	}

	if err := common.CheckResponse(res, http.StatusOK); err != nil {
		return nil, err
	}

	var payload peopleListResponse
	if err := common.DecodeJSONBody(res, &payload); err != nil {
		return nil, fmt.Errorf("failure decoding people list: %w", err)
	}

	lines := make([]string, 0, len(payload.CallsignList))
	for _, p := range payload.CallsignList {
		if len(p.Roles) > 0 {
			lines = append(lines, fmt.Sprintf("%s (%s)", p.Callsign, strings.Join(p.Roles, " ")))
		} else {
			lines = append(lines, p.Callsign)
		}
	}

	return lines, nil
}

// Revoke deletes the identity for the given callsign and returns the
// server-reported success flag.
func Revoke(ctx context.Context, s *common.Session, callsign string) (bool, error) {
	res, err := s.Delete(ctx, fmt.Sprintf("/api/v1/people/%s", callsign))
	if err != nil {
		return false, fmt.Errorf("revoke request failed: %w", err)
	}

	if err := common.CheckResponse(res, http.StatusOK); err != nil {
		return false, err
	}

	var payload revokeResponse
	if err := common.DecodeJSONBody(res, &payload); err != nil {
		return false, fmt.Errorf("failure decoding revoke response: %w", err)
	}

	return payload.Success, nil
}

// GetFiles fetches the per-product file manifests available to the
// authenticated user and decodes each file's data-URI payload. A
// product with an empty file list is skipped with a warning and gets no
// entry in the result.
func GetFiles(ctx context.Context, s *common.Session) (map[string][]UserFile, error) {
	res, err := s.Get(ctx, "/api/v1/instructions/user")
	if err != nil {
		return nil, fmt.Errorf("file manifest request failed: %w", err)
	}

	if err := common.CheckResponse(res, http.StatusOK); err != nil {
		return nil, err
	}

	var payload filesResponse
	if err := common.DecodeJSONBody(res, &payload); err != nil {
		return nil, fmt.Errorf("failure decoding file manifest: %w", err)
	}

	ret := map[string][]UserFile{}
	for product, entries := range payload.Files {
		if len(entries) == 0 {
			log.Warn().Str("product", product).Msg("product did not have files")
			continue
		}

		for _, entry := range entries {
			content, err := decodeDataURI(product, entry)
			if err != nil {
				return nil, err
			}

			ret[product] = append(ret[product], UserFile{
				Title:    entry.Title,
				Filename: entry.Filename,
				Content:  content,
			})
		}
	}

	return ret, nil
}

// decodeDataURI extracts the base64 payload of a data:<mime>;base64,...
// string. Everything after the first comma is the payload.
func decodeDataURI(product string, entry fileEntry) ([]byte, error) {
	if !strings.HasPrefix(entry.Data, "data:") {
		return nil, &MalformedFileError{
			Product:  product,
			Filename: entry.Filename,
			Detail:   "data field does not start with the data: prefix",
		}
	}

	_, b64data, found := strings.Cut(entry.Data, ",")
	if !found {
		return nil, &MalformedFileError{
			Product:  product,
			Filename: entry.Filename,
			Detail:   "data field has no payload separator",
		}
	}

	content, err := base64.StdEncoding.DecodeString(b64data)
	if err != nil {
		return nil, &MalformedFileError{
			Product:  product,
			Filename: entry.Filename,
			Detail:   fmt.Sprintf("payload is not valid base64: %v", err),
		}
	}

	return content, nil
}
