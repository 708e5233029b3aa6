package code

// Error code to message mapping
var codeMessageMap = map[int]string{
	ErrSuccess:           "success",
	ErrUnknown:           "Internal server error",
	ErrBind:              "Invalid request body",
	ErrValidation:        "Request validation failed",
	ErrAuthHeaderMissing: "Authorization header missing",
	ErrTokenInvalid:      "Invalid or expired token",
	ErrTooManyRequests:   "Too many requests",

	ErrUserNotFound:          "User not found",
	ErrUserPasswordIncorrect: "Invalid username or password",

	ErrDeviceNotFound:     "Device not found",
	ErrDeviceAlreadyExist: "Device already exists",

	ErrDatabase: "Database error",
}

// Error code to HTTP status mapping
var codeStatusMap = map[int]int{
	ErrSuccess:           StatusOK,
	ErrUnknown:           StatusInternalServerError,
	ErrBind:              StatusBadRequest,
	ErrValidation:        StatusBadRequest,
	ErrAuthHeaderMissing: StatusUnauthorized,
	ErrTokenInvalid:      StatusUnauthorized,
	ErrTooManyRequests:   StatusTooManyRequests,

	ErrUserNotFound:          StatusNotFound,
	ErrUserPasswordIncorrect: StatusUnauthorized,

	ErrDeviceNotFound:     StatusNotFound,
	ErrDeviceAlreadyExist: StatusBadRequest,

	ErrDatabase: StatusInternalServerError,
}

// GetMessage returns the message for an error code
func GetMessage(code int) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return "Unknown error"
}

// GetStatus returns the HTTP status for an error code
func GetStatus(code int) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return StatusInternalServerError
}
