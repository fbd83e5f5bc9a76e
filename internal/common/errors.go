// Package common defines shared constants and sentinel errors used across
// the attachment, storage and persistence layers. Callers should use
// errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Configuration errors are fatal at startup.
	ErrConfiguration       = errors.New("configuration error")
	ErrDuplicateAttachment = fmt.Errorf("%w: duplicate attachment", ErrConfiguration)
	ErrInvalidStepConfig   = fmt.Errorf("%w: invalid step config", ErrConfiguration)

	// Programmer errors.
	ErrUnknownAttachment = errors.New("unknown attachment")
	ErrUnknownVariant    = errors.New("unknown variant")
	ErrUnknownDisk       = errors.New("unknown disk")

	// Upload / processing errors.
	ErrInvalidUpload = errors.New("invalid upload")
	ErrProcessing    = errors.New("processing error")
	ErrNoIdentifier  = errors.New("entity has no durable identifier")
	ErrStorageDelete = errors.New("storage delete error")

	// Storage errors.
	ErrInvalidPath  = errors.New("invalid storage path")
	ErrInvalidToken = errors.New("invalid token")
)
