// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT

// Package enroll drives the multi-step enrollment protocols against the
// RASENMAEHER API.
//
// Admin enrollment is a single chain: exchange the initial login code,
// request the admin grant, exchange the returned one-time code for a
// full session token, then fetch the credential bundle. Any failed step
// aborts the whole attempt.
//
// User enrollment is split across an out-of-band approval: UserInit
// submits the callsign against an invite code and returns an approve
// code (for the approver) plus a scoped token; the enrollee polls with
// IsApproved (or WaitApproved) until an admin runs Approve, then
// UserFinish fetches the credential.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/pvarki/rmcli/common"
	"github.com/pvarki/rmcli/identity"
)

// ErrNotApproved is returned when the enrollment has not been approved
// yet. It is the one recoverable failure in this package: wait and try
// again.
var ErrNotApproved = errors.New("enrollment has not been approved")

// EnrollmentError wraps the failure of any step of the admin enrollment
// chain. The attempt is not recoverable, the operator must restart with
// a fresh login code.
type EnrollmentError struct {
	Step string
	Err  error
}

func (o *EnrollmentError) Error() string {
	return fmt.Sprintf("admin enrollment failed at %s: %v", o.Step, o.Err)
}

func (o *EnrollmentError) Unwrap() error {
	return o.Err
}

// addAdminResponse models the firstuser/add-admin response body
type addAdminResponse struct {
	JWTExchangeCode string `json:"jwt_exchange_code"`
}

// inviteCreateResponse models the invitecode/create response body
type inviteCreateResponse struct {
	InviteCode string `json:"invite_code"`
}

// enrollInitResponse models the invitecode/enroll response body
type enrollInitResponse struct {
	ApproveCode string `json:"approvecode"`
	JWT         string `json:"jwt"`
}

// acceptedResponse models the have-i-been-accepted response body
type acceptedResponse struct {
	HaveIBeenAccepted bool `json:"have_i_been_accepted"`
}

// Admin runs the admin enrollment flow for the given callsign and
// returns the issued certificate and key as PEM.
func Admin(ctx context.Context, s *common.Session, callsign, loginCode string) (certPEM, keyPEM []byte, err error) {
	if err := s.ExchangeLoginCode(ctx, loginCode); err != nil {
		return nil, nil, &EnrollmentError{Step: "login code exchange", Err: err}
	}

	res, err := s.Post(ctx, "/api/v1/firstuser/add-admin", map[string]string{"callsign": callsign})
	if err != nil {
		return nil, nil, &EnrollmentError{Step: "admin grant", Err: err}
	}

	if err := common.CheckResponse(res, http.StatusOK, http.StatusCreated); err != nil {
		return nil, nil, &EnrollmentError{Step: "admin grant", Err: err}
	}

	var payload addAdminResponse
	if err := common.DecodeJSONBody(res, &payload); err != nil {
		return nil, nil, &EnrollmentError{Step: "admin grant", Err: fmt.Errorf("failure decoding add-admin response: %w", err)}
	}

	// The server must hand back a second one-time code here; there is
	// no recovery path if it does not.
	if payload.JWTExchangeCode == "" {
		return nil, nil, &EnrollmentError{
			Step: "admin grant",
			Err:  &common.AuthExchangeError{Err: errors.New("add-admin response did not contain an exchange code")},
		}
	}

	if err := s.ExchangeLoginCode(ctx, payload.JWTExchangeCode); err != nil {
		return nil, nil, &EnrollmentError{Step: "session token exchange", Err: err}
	}

	certPEM, keyPEM, err = identity.FetchOwnCertificate(ctx, s, callsign)
	if err != nil {
		return nil, nil, &EnrollmentError{Step: "credential fetch", Err: err}
	}

	return certPEM, keyPEM, nil
}

// CreatePool requests a new reusable invite code. The Session must
// carry an admin identity (mTLS or admin bearer token).
func CreatePool(ctx context.Context, s *common.Session) (string, error) {
	res, err := s.Post(ctx, "/api/v1/enrollment/invitecode/create", nil)
	if err != nil {
		return "", fmt.Errorf("invite code request failed: %w", err)
	}

	if err := common.CheckResponse(res, http.StatusOK, http.StatusCreated); err != nil {
		return "", err
	}

	var payload inviteCreateResponse
	if err := common.DecodeJSONBody(res, &payload); err != nil {
		return "", fmt.Errorf("failure decoding invite code response: %w", err)
	}

	if payload.InviteCode == "" {
		return "", errors.New("invite code response did not contain a code")
	}

	return payload.InviteCode, nil
}

// Approve marks the pending enrollment identified by callsign and
// approve code as accepted. Requires an admin-bound Session.
func Approve(ctx context.Context, s *common.Session, callsign, approveCode string) error {
	res, err := s.Post(ctx, "/api/v1/enrollment/accept", map[string]string{
		"callsign":    callsign,
		"approvecode": approveCode,
	})
	if err != nil {
		return fmt.Errorf("approve request failed: %w", err)
	}

	if err := common.CheckResponse(res, http.StatusOK); err != nil {
		return err
	}
	res.Body.Close()

	return nil
}

// UserInit submits the callsign against an invite code. It returns the
// approve code to relay out-of-band to an approver, and a bearer token
// scoped to checking and fetching this one enrollment's outcome.
func UserInit(ctx context.Context, s *common.Session, callsign, inviteCode string) (approveCode, scopedToken string, err error) {
	res, err := s.Post(ctx, "/api/v1/enrollment/invitecode/enroll", map[string]string{
		"callsign":    callsign,
		"invite_code": inviteCode,
	})
	if err != nil {
		return "", "", fmt.Errorf("enrollment request failed: %w", err)
	}

	if err := common.CheckResponse(res, http.StatusOK, http.StatusCreated); err != nil {
		return "", "", err
	}

	var payload enrollInitResponse
	if err := common.DecodeJSONBody(res, &payload); err != nil {
		return "", "", fmt.Errorf("failure decoding enrollment response: %w", err)
	}

	return payload.ApproveCode, payload.JWT, nil
}

// IsApproved sets the scoped token on the Session and asks the server
// whether the enrollment has been accepted. A non-2xx response is a
// fatal error, not "pending".
func IsApproved(ctx context.Context, s *common.Session, scopedToken string) (bool, error) {
	if err := s.SetBearer(scopedToken); err != nil {
		return false, err
	}

	res, err := s.Get(ctx, "/api/v1/enrollment/have-i-been-accepted")
	if err != nil {
		return false, fmt.Errorf("approval check request failed: %w", err)
	}

	if err := common.CheckResponse(res, http.StatusOK); err != nil {
		return false, err
	}

	var payload acceptedResponse
	if err := common.DecodeJSONBody(res, &payload); err != nil {
		return false, fmt.Errorf("failure decoding approval check response: %w", err)
	}

	return payload.HaveIBeenAccepted, nil
}

// UserFinish re-checks approval and, if granted, fetches and decodes
// the credential bundle for the callsign. Returns ErrNotApproved while
// the enrollment is still pending.
func UserFinish(ctx context.Context, s *common.Session, callsign, scopedToken string) (certPEM, keyPEM []byte, err error) {
	accepted, err := IsApproved(ctx, s, scopedToken)
	if err != nil {
		return nil, nil, err
	}

	if !accepted {
		return nil, nil, ErrNotApproved
	}

	return identity.FetchOwnCertificate(ctx, s, callsign)
}

// WaitApproved blocks until the enrollment identified by the scoped
// token is approved, polling at a fixed interval. The first check only
// happens after one full interval; approval is human-in-the-loop, so
// there is no attempt cap and no backoff growth. Cancel the context to
// give up between polls.
func WaitApproved(ctx context.Context, s *common.Session, scopedToken string, interval time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(interval):
	}

	operation := func() (bool, error) {
		accepted, err := IsApproved(ctx, s, scopedToken)
		if err != nil {
			return false, backoff.Permanent(err)
		}
		if !accepted {
			return false, ErrNotApproved
		}
		return true, nil
	}

	// Retry defaults to a 15 minute elapsed-time cap; an approval can
	// take arbitrarily long, so the cap must be off.
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, _ time.Duration) {
			log.Warn().Err(err).Msg("still waiting for approval")
		}),
	)

	return err
}
