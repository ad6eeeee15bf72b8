// Package storage defines the key-value persistence port and its sqlite
// adapter. Values are opaque bytes; callers own the encoding.
package storage

import (
	"context"
	"strings"
)

// Key layout. Transactions are scoped per user email.
const (
	CurrentUserKey        = "currentUser"
	UsersKey              = "users"
	transactionsKeyPrefix = "transactions_"
)

// KV is a durable key-value store. Writes are last-write-wins per key.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// TransactionsKey returns the key holding the transaction list of user.
func TransactionsKey(user string) string {
	return transactionsKeyPrefix + strings.ToLower(strings.TrimSpace(user))
}
