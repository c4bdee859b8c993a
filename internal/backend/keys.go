package backend

import (
	"strings"

	"github.com/objectfs/s3backend/pkg/errors"
	"github.com/objectfs/s3backend/pkg/keyexpr"
)

// SentinelKey is the object key used when a key expression equals the storage
// prefix exactly. It is never returned as a key expression.
const SentinelKey = "@@none_key@@"

// ToObjectKey strips prefix from key and returns the object key to store it
// under. A nil key and a key equal to prefix both map to SentinelKey.
func ToObjectKey(prefix string, key *keyexpr.KeyExpr) (string, error) {
	if key == nil {
		return SentinelKey, nil
	}

	remainder, ok := key.StripPrefix(prefix)
	if !ok {
		return "", errors.Newf(errors.ErrCodeInvalidKey, "key %q does not start with prefix %q", key.String(), prefix).
			WithComponent("keys").
			WithOperation("to_object_key").
			WithContext("key", key.String())
	}

	switch remainder {
	case "":
		return SentinelKey, nil
	case SentinelKey:
		return "", errors.Newf(errors.ErrCodeInvalidKey, "key %q maps to the reserved object key", key.String()).
			WithComponent("keys").
			WithOperation("to_object_key").
			WithContext("key", key.String())
	}

	return remainder, nil
}

// FromObjectKey rebuilds the key expression of a listed object. SentinelKey
// yields nil. Leading slashes are dropped; an object key with a trailing slash
// does not name a key expression.
func FromObjectKey(prefix string, objectKey string) (*keyexpr.KeyExpr, error) {
	if objectKey == SentinelKey {
		return nil, nil
	}
	remainder := strings.TrimLeft(objectKey, keyexpr.Separator)
	if remainder == "" {
		return nil, invalidObjectKey(nil, objectKey)
	}

	var base keyexpr.KeyExpr
	if prefix != "" {
		parsed, err := keyexpr.Parse(prefix)
		if err != nil {
			return nil, invalidObjectKey(err, objectKey)
		}
		base = parsed
	}

	key, err := base.Join(remainder)
	if err != nil {
		return nil, invalidObjectKey(err, objectKey)
	}
	if key.IsZero() {
		return nil, invalidObjectKey(nil, objectKey)
	}
	return &key, nil
}

func invalidObjectKey(cause error, objectKey string) error {
	return errors.Wrap(cause, errors.ErrCodeInvalidKey, "keys", "from_object_key", "object key is not a valid key expression").
		WithContext("object_key", objectKey)
}
