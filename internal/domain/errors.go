package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateReceiptNo = errors.New("duplicate receipt number")
	ErrDuplicateReturn    = errors.New("a return already exists for this date")
)
