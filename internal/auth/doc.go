// Package auth implements the authentication core: credential
// validation across local, LDAP and OAuth sources, the MFA gate, access
// token issuance and refresh token rotation.
//
// Every credential source resolves to the same normalized Profile, so
// the login flow downstream of validation is identical regardless of
// where the identity came from. The tenant is always taken from the
// request context; no part of this package holds tenant state.
package auth
