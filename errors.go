// errors.go: construction-time failure reporting
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

import (
	"github.com/agilira/go-errors"
)

// Error codes for mnemosyne construction failures. Every runtime operation
// (insert/get/remove/contains/clear) is total and never errors; only
// building a policy over invalid size parameters can fail.
const (
	ErrCodeInvalidSize errors.ErrorCode = "MNEMOSYNE_INVALID_SIZE"
)

func errInvalidSize(field string, value int, reason string) error {
	return errors.NewWithContext(ErrCodeInvalidSize, "invalid size parameter", map[string]interface{}{
		"field":  field,
		"value":  value,
		"reason": reason,
	})
}

// IsInvalidSize reports whether err came from a rejected size parameter.
func IsInvalidSize(err error) bool {
	return errors.HasCode(err, ErrCodeInvalidSize)
}
