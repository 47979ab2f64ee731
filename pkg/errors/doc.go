// Package errors provides structured error handling with error codes for simple-secure.
//
// Services return *Error values carrying a typed code; the HTTP layer turns the
// code into a status with HTTPStatusCode.
//
// # Basic Usage
//
//	err := errors.New(errors.ErrCodeAlreadyImpersonated, "user is already in a switched session")
//	err := errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to load settings")
//
//	if errors.IsCode(err, errors.ErrCodeTokenInvalid) {
//		// fail closed
//	}
//
// # HTTP Status Code Mapping
//
//   - ErrCodeInvalidInput, ErrCodeInvalidTarget → 400 Bad Request
//   - ErrCodeUnauthorized → 401 Unauthorized
//   - ErrCodeForbidden, ErrCodeTokenInvalid → 403 Forbidden
//   - ErrCodeNotFound, ErrCodePrincipalNotFound → 404 Not Found
//   - ErrCodeConflict, ErrCodeAlreadyImpersonated → 409 Conflict
//   - ErrCodeRateLimitExceeded → 429 Too Many Requests
//   - everything else → 500 Internal Server Error
package errors
