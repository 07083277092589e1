// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package cache

import (
	gocache "github.com/patrickmn/go-cache"
)

// InMemory is a Store holding everything in process memory. It is the default
// when no persistent store is supplied: tokens survive for the life of the
// client and are gone on process exit.
type InMemory struct {
	accessTokens  *memPartition
	refreshTokens *memPartition
}

// NewInMemory creates an InMemory store.
func NewInMemory() *InMemory {
	return &InMemory{
		accessTokens:  newMemPartition(),
		refreshTokens: newMemPartition(),
	}
}

// AccessTokens implements Store.
func (s *InMemory) AccessTokens() Partition {
	return s.accessTokens
}

// RefreshTokens implements Store.
func (s *InMemory) RefreshTokens() Partition {
	return s.refreshTokens
}

// memPartition adapts go-cache to the Partition interface. Entries never expire;
// token lifetime is enforced by the storage engine, not the store.
type memPartition struct {
	c *gocache.Cache
}

func newMemPartition() *memPartition {
	return &memPartition{c: gocache.New(gocache.NoExpiration, 0)}
}

func (p *memPartition) Get(key string) (string, bool) {
	v, ok := p.c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (p *memPartition) Set(key, value string) {
	p.c.Set(key, value, gocache.NoExpiration)
}

func (p *memPartition) Delete(key string) {
	p.c.Delete(key)
}

func (p *memPartition) Keys() []string {
	items := p.c.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys
}
