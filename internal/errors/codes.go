// Package errors provides structured error handling for the item service.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidArgument represents a malformed request field or body.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Item validation errors
	CodeItemIDEmpty    Code = "ITEM_ID_EMPTY"
	CodeItemIDInvalid  Code = "ITEM_ID_INVALID"
	CodeItemFieldEmpty Code = "ITEM_FIELD_EMPTY"

	// Item lifecycle errors
	CodeItemDuplicate              Code = "ITEM_DUPLICATE"
	CodeItemInvalidStateTransition Code = "ITEM_INVALID_STATE_TRANSITION"
	CodeConcurrencyConflict        Code = "CONCURRENCY_CONFLICT"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Query errors
	CodeInvalidFilter    Code = "INVALID_FILTER"
	CodeInvalidOrderBy   Code = "INVALID_ORDER_BY"
	CodeInvalidPageToken Code = "INVALID_PAGE_TOKEN"

	// Operation errors
	CodeOperationNotFound Code = "OPERATION_NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidArgument,
		CodeItemIDEmpty,
		CodeItemIDInvalid,
		CodeItemFieldEmpty,
		CodeInvalidFilter,
		CodeInvalidOrderBy,
		CodeInvalidPageToken:
		return codes.InvalidArgument

	// AlreadyExists - create collided with a live record
	case CodeItemDuplicate:
		return codes.AlreadyExists

	// FailedPrecondition - state doesn't allow operation
	case CodeItemInvalidStateTransition:
		return codes.FailedPrecondition

	// Aborted - optimistic concurrency lost, caller should re-read and retry
	case CodeConcurrencyConflict:
		return codes.Aborted

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeOperationNotFound:
		return codes.NotFound

	default:
		return codes.Unknown
	}
}

// HTTPStatus maps domain codes to HTTP status codes for the JSON surface.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument,
		CodeItemIDEmpty,
		CodeItemIDInvalid,
		CodeItemFieldEmpty,
		CodeInvalidFilter,
		CodeInvalidOrderBy,
		CodeInvalidPageToken:
		return http.StatusBadRequest
	case CodeItemDuplicate:
		return http.StatusConflict
	case CodeItemInvalidStateTransition:
		return http.StatusUnprocessableEntity
	case CodeConcurrencyConflict:
		return http.StatusPreconditionFailed
	case CodeNotFound, CodeOperationNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
