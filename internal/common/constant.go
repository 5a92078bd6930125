// Package common contains shared constants and sentinel errors used across
// vidauth components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// AuthorizationHeaderName carries "Bearer <token>" on HTTP and gRPC requests.
const AuthorizationHeaderName = "authorization"

// BearerPrefix is the scheme prefix expected in the Authorization header.
const BearerPrefix = "Bearer "

// InvalidAccessTokenMessage is the only message a rejected access token
// produces, on HTTP and gRPC alike. Clients key token refresh on it.
const InvalidAccessTokenMessage = "invalid access token"

// Cookie names used by the HTTP transport.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)
