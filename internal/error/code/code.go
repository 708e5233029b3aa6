package code

// HTTP status codes used by the error taxonomy.
const (
	StatusOK                  = 200
	StatusCreated             = 201
	StatusNoContent           = 204
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusNotFound            = 404
	StatusTooManyRequests     = 429
	StatusInternalServerError = 500
)

// Generic error codes (100xxx).
const (
	// ErrSuccess - 200: success.
	ErrSuccess int = iota + 100000
	// ErrUnknown - 500: internal server error.
	ErrUnknown
	// ErrBind - 400: request body binding error.
	ErrBind
	// ErrValidation - 400: request parameter validation error.
	ErrValidation
	// ErrAuthHeaderMissing - 401: Authorization header absent.
	ErrAuthHeaderMissing
	// ErrTokenInvalid - 401: invalid or expired token.
	ErrTokenInvalid
	// ErrTooManyRequests - 429: request rate too high.
	ErrTooManyRequests
)

// User error codes (101xxx).
const (
	// ErrUserNotFound - 404: user does not exist.
	ErrUserNotFound int = iota + 101000
	// ErrUserPasswordIncorrect - 401: invalid username or password.
	ErrUserPasswordIncorrect
)

// Device error codes (102xxx).
const (
	// ErrDeviceNotFound - 404: device does not exist.
	ErrDeviceNotFound int = iota + 102000
	// ErrDeviceAlreadyExist - 400: device id already registered.
	ErrDeviceAlreadyExist
)

// Database error codes (105xxx).
const (
	// ErrDatabase - 500: database error.
	ErrDatabase int = iota + 105000
)
