package handlers

const (
	OAuthStateCookieName = "oauth_state"

	ErrInvalidRequestBody  = "Invalid request body"
	ErrInvalidID           = "Invalid ID"
	ErrUnauthorized        = "Unauthorized"
	ErrInternalServerError = "Internal server error"
	ErrTooManyRequests     = "Too many requests. Please try again later."
	ErrServiceStarting     = "Server is starting. Please try again shortly."
)
