package cli

const (
	Success = 0

	// UserError covers bad arguments, unknown tasks and validation failures.
	UserError = 1

	// AuthError means the user is not signed in or the session was rejected.
	AuthError = 2

	// BackendError covers server and network failures.
	BackendError = 3
)
