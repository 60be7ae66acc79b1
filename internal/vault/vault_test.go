package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	ct, iv, tag, err := v.Encrypt("6064-1111-2222-3333")
	require.NoError(t, err)

	plain, err := v.Decrypt(ct, iv, tag)
	require.NoError(t, err)
	assert.Equal(t, "6064-1111-2222-3333", plain)
}

func TestDecryptRejectsTamperedTag(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	ct, iv, tag, err := v.Encrypt("secret")
	require.NoError(t, err)

	flipped := "0" + tag[1:]
	if flipped == tag {
		flipped = "1" + tag[1:]
	}

	_, err = v.Decrypt(ct, iv, flipped)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	ct, iv, tag, err := v.Encrypt("secret")
	require.NoError(t, err)

	flipped := "0" + ct[1:]
	if flipped == ct {
		flipped = "1" + ct[1:]
	}

	_, err = v.Decrypt(flipped, iv, tag)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDecryptRejectsBadEncodings(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	_, err = v.Decrypt("zz", "00", "00")
	assert.ErrorIs(t, err, ErrDecryptFailed)

	_, err = v.Decrypt("00", "zz", "00")
	assert.ErrorIs(t, err, ErrDecryptFailed)

	// wrong nonce size
	_, err = v.Decrypt("00", "00", "00")
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestNewRejectsBadKeys(t *testing.T) {
	_, err := New("not-hex")
	assert.Error(t, err)

	_, err = New(strings.Repeat("ab", 16)) // 16 bytes, need 32
	assert.Error(t, err)
}
