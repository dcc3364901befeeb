/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"context"
	"time"

	"github.com/bluele/gcache"
)

const (
	schemaKeyPrefix  = "schema:"
	credDefKeyPrefix = "creddef:"
)

// CachingResolver caches lookups of an underlying SchemaResolver.
// Credential definitions are cached only once they are ready.
type CachingResolver struct {
	next  SchemaResolver
	cache gcache.Cache
}

// NewCachingResolver wraps the resolver with an LRU cache of the given size and expiry.
func NewCachingResolver(next SchemaResolver, size int, expiry time.Duration) *CachingResolver {
	return &CachingResolver{
		next:  next,
		cache: gcache.New(size).LRU().Expiration(expiry).Build(),
	}
}

// Schema returns the schema, from cache when possible.
func (c *CachingResolver) Schema(ctx context.Context, schemaID string) (*Schema, error) {
	if v, err := c.cache.Get(schemaKeyPrefix + schemaID); err == nil {
		return v.(*Schema), nil //nolint: forcetypeassert
	}

	s, err := c.next.Schema(ctx, schemaID)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(schemaKeyPrefix+schemaID, s); err != nil {
		logger.Warnf("failed to cache schema %s: %s", schemaID, err)
	}

	return s, nil
}

// CredentialDefinition returns the credential definition, from cache when possible.
func (c *CachingResolver) CredentialDefinition(ctx context.Context, credDefID string) (*CredentialDefinition, error) {
	if v, err := c.cache.Get(credDefKeyPrefix + credDefID); err == nil {
		return v.(*CredentialDefinition), nil //nolint: forcetypeassert
	}

	cd, err := c.next.CredentialDefinition(ctx, credDefID)
	if err != nil {
		return nil, err
	}

	if cd.Ready {
		if err := c.cache.Set(credDefKeyPrefix+credDefID, cd); err != nil {
			logger.Warnf("failed to cache credential definition %s: %s", credDefID, err)
		}
	}

	return cd, nil
}

// Purge drops all cached entries.
func (c *CachingResolver) Purge() {
	c.cache.Purge()
}
