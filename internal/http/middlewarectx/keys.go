// Package middlewarectx contains the HTTP middleware of the service:
// identity extraction from the auth provider's JWT, the entitlement gate
// in front of catalog routes and request rate limiting.
package middlewarectx

// Key is the type for request context keys.
type Key string

const (
	// UserUID is the context key for the authenticated user id.
	UserUID Key = "user_uid"
	// UserEmail is the context key for the authenticated user's email.
	UserEmail Key = "user_email"
)
