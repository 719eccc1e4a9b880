// Package handler holds the HTTP handlers of the webhook server.
package handler

// ErrorResponse is the body of every non-empty error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// Error messages returned to webhook senders
const (
	MsgMalformedRequest     = "Malformed request"
	MsgInvalidSignature     = "Invalid webhook signature"
	MsgUnknownPackage       = "Unknown package"
	MsgWarehouseUnavailable = "Warehouse recommendation unavailable"
	MsgPayloadTooLarge      = "Request body too large"
	MsgInternalError        = "Internal server error"
)
