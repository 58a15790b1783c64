package core

import "errors"

var (
	ErrChainMismatch    = errors.New("block does not extend the current chain tip")
	ErrInvalidSignature = errors.New("invalid transaction signature")
	ErrNotFound         = errors.New("not found")
	ErrOutOfRange       = errors.New("out of range")
)
