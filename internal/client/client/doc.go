// Package client is the Go client for the estately auth HTTP API.
//
// # Overview
//
// HTTPClient talks to the /api/auth endpoints, keeps the current token pair
// in a SessionStore and transparently refreshes an expired access token:
// a 401 from an authenticated call triggers exactly one refresh and one
// retry. When that does not help, local tokens are cleared and
// ErrReauthenticate is returned so the caller can prompt for credentials.
//
// # Error Handling
//
// Failures are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrReauthenticate,
// ErrNotLoggedIn, ErrRateLimited. Non-2xx responses are returned as
// *APIError carrying the server message.
//
// HTTPClient is safe for concurrent use.
package client
