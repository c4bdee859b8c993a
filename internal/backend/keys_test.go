package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/s3backend/pkg/errors"
	"github.com/objectfs/s3backend/pkg/keyexpr"
)

func keyPtr(s string) *keyexpr.KeyExpr {
	k := keyexpr.MustParse(s)
	return &k
}

func TestToObjectKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prefix  string
		key     *keyexpr.KeyExpr
		want    string
		wantErr bool
	}{
		{name: "strips prefix", prefix: "demo/example", key: keyPtr("demo/example/a/b"), want: "a/b"},
		{name: "key equals prefix", prefix: "demo/example", key: keyPtr("demo/example"), want: SentinelKey},
		{name: "nil key", prefix: "demo/example", key: nil, want: SentinelKey},
		{name: "no prefix", prefix: "", key: keyPtr("a/b/c"), want: "a/b/c"},
		{name: "partial chunk is not a prefix", prefix: "demo/example", key: keyPtr("demo/examples/a"), wantErr: true},
		{name: "foreign key", prefix: "demo/example", key: keyPtr("other/a"), wantErr: true},
		{name: "reserved remainder", prefix: "demo", key: keyPtr("demo/" + SentinelKey), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToObjectKey(tt.prefix, tt.key)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidKey), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromObjectKey(t *testing.T) {
	t.Parallel()

	key, err := FromObjectKey("demo/example", "a/b")
	require.NoError(t, err)
	assert.Equal(t, "demo/example/a/b", key.String())

	key, err = FromObjectKey("", "a/b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", key.String())

	// leading separators left by other writers are tolerated
	key, err = FromObjectKey("demo", "/a")
	require.NoError(t, err)
	assert.Equal(t, "demo/a", key.String())

	key, err = FromObjectKey("demo", SentinelKey)
	require.NoError(t, err)
	assert.Nil(t, key)

	_, err = FromObjectKey("demo", "a#b")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidKey))

	_, err = FromObjectKey("", "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidKey))

	// a trailing slash is kept, so the object cannot be confused with "dir"
	for _, prefix := range []string{"", "demo"} {
		_, err = FromObjectKey(prefix, "dir/")
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidKey), "prefix %q: got %v", prefix, err)
	}

	_, err = FromObjectKey("demo", "/")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidKey), "a bare separator must not map to the prefix")
}

func TestObjectKeyRoundTrip(t *testing.T) {
	t.Parallel()

	for _, prefix := range []string{"", "demo", "demo/example"} {
		for _, s := range []string{"demo/example/a", "demo/example/a/b/c", "demo/example/@meta/x"} {
			k := keyexpr.MustParse(s)
			objectKey, err := ToObjectKey(prefix, &k)
			require.NoError(t, err)

			back, err := FromObjectKey(prefix, objectKey)
			require.NoError(t, err)
			require.NotNil(t, back)
			assert.True(t, k.Equal(*back), "prefix %q: %s became %s", prefix, k, back)
		}
	}

	// the sentinel maps back to "no key"
	objectKey, err := ToObjectKey("demo/example", keyPtr("demo/example"))
	require.NoError(t, err)
	back, err := FromObjectKey("demo/example", objectKey)
	require.NoError(t, err)
	assert.Nil(t, back)
}
