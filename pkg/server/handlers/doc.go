// Package handlers implements the /v1 JSON API.
//
// Every /v1 route runs behind the identity middleware, so handlers read the
// caller's user id from the request context and only ever touch that
// user's data.
//
// Errors are mapped to status codes in one place (writeServiceError):
//
//	*usage.ValidationError     400 invalid_request_error
//	usage.ErrUnauthorized      403 permission_denied
//	usage.ErrNotFound          404 not_found
//	context.DeadlineExceeded   504 gateway_timeout
//	anything else              500 server_error
package handlers
