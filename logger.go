// logger.go: optional eviction/clash tracing
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package mnemosyne

// Logger is the minimal structured-logging surface a façade accepts.
// Attaching one is optional; every policy runs silently by default.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

func logEvict[K comparable](l Logger, policy string, key K) {
	if l == nil {
		return
	}
	l.Debug("evicted tail entry", "policy", policy, "key", key)
}

func logClash[K comparable](l Logger, policy string, key K) {
	if l == nil {
		return
	}
	l.Debug("absorbed key clash", "policy", policy, "key", key)
}
