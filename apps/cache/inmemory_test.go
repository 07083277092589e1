// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package cache

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryPartitions(t *testing.T) {
	store := NewInMemory()

	store.AccessTokens().Set("at-key", "at-value")
	store.RefreshTokens().Set("rt-key", "rt-value")

	v, ok := store.AccessTokens().Get("at-key")
	assert.True(t, ok)
	assert.Equal(t, "at-value", v)

	// Partitions are independent.
	_, ok = store.RefreshTokens().Get("at-key")
	assert.False(t, ok)

	store.AccessTokens().Set("at-key", "overwritten")
	v, _ = store.AccessTokens().Get("at-key")
	assert.Equal(t, "overwritten", v)

	store.AccessTokens().Set("another", "x")
	keys := store.AccessTokens().Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"another", "at-key"}, keys)

	store.AccessTokens().Delete("at-key")
	_, ok = store.AccessTokens().Get("at-key")
	assert.False(t, ok)

	// Deleting a missing key is a no-op.
	store.AccessTokens().Delete("never-existed")
}
