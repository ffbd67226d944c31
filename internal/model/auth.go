package model

// AuthContext holds the authenticated identity of a request.
// It is injected into the request context by the auth middleware.
type AuthContext struct {
	UserID string
	Email  string
	// Admin is set for requests authenticated with the operator token.
	Admin bool
}
