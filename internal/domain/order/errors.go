package order

import "errors"

var (
	// ErrMalformedRequest is returned when a webhook request lacks required headers or a readable body
	ErrMalformedRequest = errors.New("order: malformed request")
	// ErrMalformedPayload is returned when the body does not match the order payload schema
	ErrMalformedPayload = errors.New("order: malformed payload")
	// ErrUnauthenticated is returned for an unknown shop domain or a bad signature
	ErrUnauthenticated = errors.New("order: webhook authentication failed")
	// ErrUnknownProduct is returned when a line item carries no SKU
	ErrUnknownProduct = errors.New("order: unknown package")
	// ErrExternalDependency is returned when a collaborator outside the database fails
	ErrExternalDependency = errors.New("order: external dependency failed")
)
