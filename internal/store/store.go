package store

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Well-known keys. Each holds one JSON document.
const (
	KeySettings   = "settings"
	KeyRunState   = "raid_state"
	KeyBreakState = "break_state"
	KeyStatus     = "raid_status"
	KeyCookies    = "session_cookies"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("store: key not found")

// KV is the persistent key/value surface the automation keeps its state in. Values are
// opaque bytes; GetJSON and PutJSON layer the document codec on top.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GetJSON loads key into v. It returns ErrNotFound (possibly wrapped) for missing keys.
func GetJSON(ctx context.Context, kv KV, key string, v interface{}) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, kv KV, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	return kv.Set(ctx, key, raw)
}
