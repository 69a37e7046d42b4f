package repositories

import (
	"errors"
	"fmt"
)

// InventoryErrorCode enumerates repository error causes for inventory operations.
type InventoryErrorCode string

const (
	// InventoryErrorUnknown represents an unspecified failure.
	InventoryErrorUnknown InventoryErrorCode = "inventory_unknown"
	// InventoryErrorInsufficientStock indicates an adjustment would take the quantity below zero.
	InventoryErrorInsufficientStock InventoryErrorCode = "inventory_insufficient_stock"
	// InventoryErrorSKUNotFound indicates no variant matches the product, color and size.
	InventoryErrorSKUNotFound InventoryErrorCode = "inventory_sku_not_found"
)

// InventoryError wraps inventory-specific failures with machine readable codes.
type InventoryError struct {
	Op      string
	Code    InventoryErrorCode
	Message string
	Err     error
}

var _ RepositoryError = (*InventoryError)(nil)

// Error implements the error interface.
func (e *InventoryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *InventoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the SKU is missing.
func (e *InventoryError) IsNotFound() bool { return e != nil && e.Code == InventoryErrorSKUNotFound }

// IsConflict reports whether the stock could not cover the adjustment.
func (e *InventoryError) IsConflict() bool {
	return e != nil && e.Code == InventoryErrorInsufficientStock
}

// IsUnavailable reports whether the underlying store was unreachable.
func (e *InventoryError) IsUnavailable() bool {
	if e == nil || e.Err == nil {
		return false
	}
	var repoErr RepositoryError
	return errors.As(e.Err, &repoErr) && repoErr.IsUnavailable()
}

// NewInventoryError constructs a typed inventory error.
func NewInventoryError(code InventoryErrorCode, message string, err error) *InventoryError {
	if message == "" {
		message = string(code)
	}
	return &InventoryError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// InventoryErrorCodeOf extracts the inventory code from err, if any.
func InventoryErrorCodeOf(err error) (InventoryErrorCode, bool) {
	var invErr *InventoryError
	if errors.As(err, &invErr) {
		return invErr.Code, true
	}
	return "", false
}
