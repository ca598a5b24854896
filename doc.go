// Copyright 2023 Contributors to the RASENMAEHER project.
// SPDX-License-Identifier: MIT

/*
Package rmcli implements a client for the RASENMAEHER certificate
enrollment and identity API, plus the rmcli command line tool under
cmd/rmcli.

# Sessions

All operations run over a common.Session, which owns one HTTP(s)
transport. A fresh Session trusts the usual CAs (plus anything named by
LOCAL_CA_CERTS_PATH) and is anonymous:

	s, err := common.NewSession("https://mtls.example.org", 5*time.Second)
	if err != nil { ... }
	defer s.Close()

It can authenticate either by exchanging a one-time login code for a
bearer token:

	err = s.ExchangeLoginCode(ctx, "ABC123")

or by rebinding the transport to present a previously issued client
certificate:

	err = s.BindIdentity("OTTER11a.crt", "OTTER11a.key")

Rebinding closes the old transport and drops any bearer token that was
tied to it.

# Enrollment

New admins enroll in one chain fed by a login code:

	certPEM, keyPEM, err := enroll.Admin(ctx, s, "OTTER11a", "ABC123")

Regular users enroll against an invite code, relay the returned approve
code to an admin out-of-band, and wait:

	approveCode, token, err := enroll.UserInit(ctx, s, "KETTU22b", "INV1")
	...
	err = enroll.WaitApproved(ctx, s, token, 10*time.Second)
	certPEM, keyPEM, err := enroll.UserFinish(ctx, s, "KETTU22b", token)

# Directory operations

An enrolled identity can resolve itself, list and revoke callsigns, and
fetch per-product files:

	callsign, err := identity.Whoami(ctx, s)
	lines, err := directory.ListIdentities(ctx, s)
	ok, err := directory.Revoke(ctx, s, "KETTU22b")
	files, err := directory.GetFiles(ctx, s)
*/
package rmcli
