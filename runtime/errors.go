package runtime

import "errors"

// ErrNotFound is the underlying error whose message is surfaced (via an
// rpc_err envelope with code "NOT_FOUND") when an inbound rpc_req names
// a method with no descriptor or no registered handler.
var ErrNotFound = errors.New("runtime: method not found")

// CodeNotFound is the rpc_err code used for ErrNotFound.
const CodeNotFound = "NOT_FOUND"

// CodeValidation is the rpc_err code used when request or response
// validation fails on the server side.
const CodeValidation = "VALIDATION_ERROR"

// CodeInternal is the rpc_err code used for any other handler failure.
const CodeInternal = "INTERNAL_ERROR"
