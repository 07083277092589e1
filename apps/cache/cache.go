// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package cache allows third parties to implement persistent storage for the token
// cache. The storage engine treats storage as two independent, opaque key to string
// partitions: one for access token records and one for refresh token records. The
// keys are the stable serialized cache keys, so implementations must store them
// byte for byte. Platform storage encryption is the implementation's concern; this
// package only defines the contract and an in-memory default.
package cache

// Partition is an opaque key to string value store. Implementations must be safe
// for concurrent use.
type Partition interface {
	// Get returns the value stored at key and whether it existed.
	Get(key string) (string, bool)
	// Set stores value at key, overwriting any existing value.
	Set(key, value string)
	// Delete removes the value at key. Removing a missing key is not an error.
	Delete(key string)
	// Keys returns the keys of every stored entry.
	Keys() []string
}

// Store provides the two partitions the token cache persists into. A Store is
// usually backed by the platform secure key-value storage on mobile devices.
type Store interface {
	// AccessTokens is the partition holding access token records.
	AccessTokens() Partition
	// RefreshTokens is the partition holding refresh token records.
	RefreshTokens() Partition
}
