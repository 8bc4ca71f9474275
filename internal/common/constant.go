// Package common contains shared constants and sentinel errors used across
// estately components.
package common

// Cookie names carrying the token pair between browser and server.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

// ActivePersonaHeaderName carries the client-declared persona
// (buyer/seller/broker). It is UI state only and never used for authorization.
const ActivePersonaHeaderName = "X-Active-Persona"
