package keystore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	pubkey := []byte{0x01, 0x02, 0x03}
	password := []byte("correct horse battery staple")

	ks, err := Encrypt(seed, pubkey, password, "m/lean/0")
	require.NoError(t, err)
	require.Equal(t, Version, int(ks.Version))
	require.Equal(t, Keytype, ks.Keytype)
	require.True(t, ks.QuantumSecure)

	decrypted, err := ks.Decrypt(password)
	require.NoError(t, err)
	require.Equal(t, seed, decrypted.Seed)
	require.Equal(t, pubkey, decrypted.PublicKey)
}

func TestDecryptWrongPassword(t *testing.T) {
	seed := make([]byte, 32)
	ks, err := Encrypt(seed, nil, []byte("right-password"), "")
	require.NoError(t, err)

	_, err = ks.Decrypt([]byte("wrong-password"))
	require.Error(t, err)

	ok, err := ks.ValidatePassword([]byte("wrong-password"))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = ks.ValidatePassword([]byte("right-password"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestValidateRejectsBadFieldLengths(t *testing.T) {
	seed := make([]byte, 32)
	ks, err := Encrypt(seed, nil, []byte("pw"), "")
	require.NoError(t, err)

	ks.Crypto.KDF.Params.Salt = ks.Crypto.KDF.Params.Salt[:16]
	require.Error(t, ks.Validate())
}

func TestJSONRoundTrip(t *testing.T) {
	seed := make([]byte, 32)
	ks, err := Encrypt(seed, []byte{0xAB}, []byte("pw"), "m/lean/0")
	require.NoError(t, err)

	data, err := json.Marshal(ks)
	require.NoError(t, err)

	var decoded EncryptedKeystore
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, ks.UUID, decoded.UUID)
	require.Equal(t, ks.Crypto.Cipher.Message, decoded.Crypto.Cipher.Message)
	require.Equal(t, ks.Crypto.KDF.Params.Salt, decoded.Crypto.KDF.Params.Salt)

	recovered, err := decoded.Decrypt([]byte("pw"))
	require.NoError(t, err)
	require.Equal(t, seed, recovered.Seed)
}
