// Package keystore implements the JSON keystore wire format used to store
// an encrypted validator signing seed on disk (spec.md §6): version 5,
// argon2id key derivation, AES-256-GCM encryption, and the
// xmss-poseidon2-ots-seed post-quantum key type. The container shape
// (crypto.kdf/crypto.cipher/crypto.checksum) is grounded on the `ream`
// keystore's EncryptedKeystore (version 4, ECDSA/BLS keytypes), kept
// field-for-field but with the KDF and cipher swapped to the PQ-track pair
// spec.md mandates.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/leancore/beacon/errtypes"
)

const (
	// Version is the only keystore version this package reads or writes.
	Version = 5
	// Keytype identifies the post-quantum signature scheme the encrypted
	// seed is used with.
	Keytype = "xmss-poseidon2-ots-seed"

	kdfFunction      = "argon2id"
	cipherFunction   = "aes-256-gcm"
	checksumFunction = "gcm-tag"

	saltLen  = 32
	nonceLen = 12
	tagLen   = 16
	keyLen   = 32
)

// Argon2Params is the KDF parameter block for the argon2id function, per
// RFC 9106's recommended field names.
type Argon2Params struct {
	Salt    HexBytes `json:"salt"`
	Time    uint32   `json:"t"`
	Memory  uint32   `json:"m"`
	Threads uint8    `json:"p"`
	DKLen   uint32   `json:"dklen"`
}

// DefaultArgon2Params returns the argon2id cost parameters this package
// encrypts new keystores with (RFC 9106's second recommended option: 3
// passes, 64 MiB, 4 lanes).
func DefaultArgon2Params(salt []byte) Argon2Params {
	return Argon2Params{
		Salt:    salt,
		Time:    3,
		Memory:  64 * 1024,
		Threads: 4,
		DKLen:   keyLen,
	}
}

// KDFModule is the `crypto.kdf` field.
type KDFModule struct {
	Function string       `json:"function"`
	Params   Argon2Params `json:"params"`
}

// CipherParams is the AES-256-GCM nonce.
type CipherParams struct {
	Nonce HexBytes `json:"nonce"`
}

// CipherModule is the `crypto.cipher` field. Message holds the GCM
// ciphertext (without the appended authentication tag — that is split out
// into Checksum.Message, matching the 32/12/16-byte salt/nonce/tag layout
// spec.md §6 requires).
type CipherModule struct {
	Function string       `json:"function"`
	Params   CipherParams `json:"params"`
	Message  HexBytes     `json:"message"`
}

// ChecksumModule is the `crypto.checksum` field. For aes-256-gcm the GCM
// authentication tag already binds the ciphertext to the derived key, so
// this module carries that tag rather than a separate preimage hash the
// way ream's sha256-over-pbkdf2/scrypt checksum does.
type ChecksumModule struct {
	Function string          `json:"function"`
	Params   json.RawMessage `json:"params"`
	Message  HexBytes        `json:"message"`
}

// Crypto bundles the three function blocks a keystore's `crypto` field
// carries.
type Crypto struct {
	KDF      KDFModule      `json:"kdf"`
	Checksum ChecksumModule `json:"checksum"`
	Cipher   CipherModule   `json:"cipher"`
}

// EncryptedKeystore is the on-disk JSON keystore document.
type EncryptedKeystore struct {
	Crypto        Crypto          `json:"crypto"`
	Description   string          `json:"description,omitempty"`
	Pubkey        HexBytes        `json:"pubkey"`
	Path          string          `json:"path,omitempty"`
	UUID          string          `json:"uuid"`
	Version       uint64          `json:"version"`
	Keytype       string          `json:"keytype"`
	QuantumSecure bool            `json:"quantum_secure"`
	Meta          json.RawMessage `json:"meta,omitempty"`
}

// Keystore is the decrypted material: the PQ public key alongside the
// signing seed it was derived from.
type Keystore struct {
	PublicKey []byte
	Seed      []byte
}

// HexBytes (de)serializes as a plain (no 0x prefix) hex string, matching
// ream's hex_serde convention for keystore fields.
type HexBytes []byte

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return errtypes.Validationf("keystore_hex_field", "invalid hex field: %v", err)
	}
	*h = decoded
	return nil
}

// Encrypt derives a key from password via argon2id, encrypts seed with
// AES-256-GCM, and assembles the resulting keystore document. path is the
// optional derivation-path string carried in the `path` field.
func Encrypt(seed, pubkey, password []byte, path string) (*EncryptedKeystore, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, errtypes.Storage("keystore_salt", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errtypes.Storage("keystore_nonce", err)
	}

	params := DefaultArgon2Params(salt)
	derivedKey := argon2.IDKey(password, salt, params.Time, params.Memory, params.Threads, params.DKLen)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, errtypes.Storage("keystore_aes_cipher", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceLen)
	if err != nil {
		return nil, errtypes.Storage("keystore_gcm", err)
	}

	sealed := gcm.Seal(nil, nonce, seed, nil)
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errtypes.Storage("keystore_uuid", err)
	}

	ks := &EncryptedKeystore{
		Crypto: Crypto{
			KDF: KDFModule{Function: kdfFunction, Params: params},
			Checksum: ChecksumModule{
				Function: checksumFunction,
				Params:   json.RawMessage("{}"),
				Message:  tag,
			},
			Cipher: CipherModule{
				Function: cipherFunction,
				Params:   CipherParams{Nonce: nonce},
				Message:  ciphertext,
			},
		},
		Pubkey:        pubkey,
		Path:          path,
		UUID:          id.String(),
		Version:       Version,
		Keytype:       Keytype,
		QuantumSecure: true,
	}
	if err := ks.Validate(); err != nil {
		return nil, err
	}
	return ks, nil
}

// Validate checks the fixed-width hex fields and the version/function
// names spec.md §6 requires, independent of any password.
func (ks *EncryptedKeystore) Validate() error {
	if ks.Version != Version {
		return errtypes.Validationf("keystore_version", "unsupported keystore version %d", ks.Version)
	}
	if ks.Keytype != Keytype {
		return errtypes.Validationf("keystore_keytype", "unsupported keystore keytype %q", ks.Keytype)
	}
	if !ks.QuantumSecure {
		return errtypes.Validationf("keystore_quantum_secure", "quantum_secure must be true for keytype %q", ks.Keytype)
	}
	if ks.Crypto.KDF.Function != kdfFunction {
		return errtypes.Validationf("keystore_kdf_function", "unsupported kdf function %q", ks.Crypto.KDF.Function)
	}
	if ks.Crypto.Cipher.Function != cipherFunction {
		return errtypes.Validationf("keystore_cipher_function", "unsupported cipher function %q", ks.Crypto.Cipher.Function)
	}
	if len(ks.Crypto.KDF.Params.Salt) != saltLen {
		return errtypes.Validationf("keystore_salt_length", "salt must be %d bytes, got %d", saltLen, len(ks.Crypto.KDF.Params.Salt))
	}
	if len(ks.Crypto.Cipher.Params.Nonce) != nonceLen {
		return errtypes.Validationf("keystore_nonce_length", "nonce must be %d bytes, got %d", nonceLen, len(ks.Crypto.Cipher.Params.Nonce))
	}
	if len(ks.Crypto.Checksum.Message) != tagLen {
		return errtypes.Validationf("keystore_tag_length", "tag must be %d bytes, got %d", tagLen, len(ks.Crypto.Checksum.Message))
	}
	if _, err := uuid.Parse(ks.UUID); err != nil {
		return errtypes.Validationf("keystore_uuid_format", "invalid uuid: %v", err)
	}
	return nil
}

// Decrypt derives the key from password and opens the AES-256-GCM
// ciphertext, returning the recovered seed. The GCM tag authenticates the
// password implicitly: a wrong password produces a derived key that fails
// to open the seal.
func (ks *EncryptedKeystore) Decrypt(password []byte) (*Keystore, error) {
	if err := ks.Validate(); err != nil {
		return nil, err
	}

	params := ks.Crypto.KDF.Params
	derivedKey := argon2.IDKey(password, params.Salt, params.Time, params.Memory, params.Threads, params.DKLen)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, errtypes.Storage("keystore_aes_cipher", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceLen)
	if err != nil {
		return nil, errtypes.Storage("keystore_gcm", err)
	}

	sealed := append(append([]byte{}, ks.Crypto.Cipher.Message...), ks.Crypto.Checksum.Message...)
	seed, err := gcm.Open(nil, ks.Crypto.Cipher.Params.Nonce, sealed, nil)
	if err != nil {
		return nil, errtypes.Validationf("keystore_wrong_password", "password does not decrypt this keystore")
	}

	return &Keystore{PublicKey: ks.Pubkey, Seed: seed}, nil
}

// ValidatePassword reports whether password opens ks without returning the
// decrypted seed.
func (ks *EncryptedKeystore) ValidatePassword(password []byte) (bool, error) {
	if _, err := ks.Decrypt(password); err != nil {
		if errtypes.Is(err, errtypes.KindValidation) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
