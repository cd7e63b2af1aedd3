// Copyright (c) 2023-2024 The hdvault developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keys

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/hdvault/hdvault/chaincfg"
)

// PrivateKeyBytesLen is the length of a serialized private key.
const PrivateKeyBytesLen = 32

var (
	// ErrInvalidPrivateKeyLen describes an error in which a serialized
	// private key is not exactly 32 bytes.
	ErrInvalidPrivateKeyLen = errors.New("private key must be 32 bytes")

	// ErrPrivateKeyOutOfRange describes an error in which a private key
	// scalar is zero or not below the secp256k1 curve order.
	ErrPrivateKeyOutOfRange = errors.New("private key is out of range [1, N)")

	// ErrScalarOutOfRange describes an error in which a tweak scalar is
	// not below the secp256k1 curve order.
	ErrScalarOutOfRange = errors.New("scalar is not below the curve order")

	// ErrTweakedKeyIsZero describes an error in which tweaking a key
	// produced the zero scalar or the point at infinity.
	ErrTweakedKeyIsZero = errors.New("tweaked key is zero")

	// ErrMalformedWIF describes an error in which a WIF string decodes to
	// a payload of unexpected shape.
	ErrMalformedWIF = errors.New("malformed WIF private key")

	// ErrWrongWIFNetwork describes an error in which the version byte of
	// a WIF string does not match the expected network.
	ErrWrongWIFNetwork = errors.New("WIF network byte does not match network")
)

// PrivateKey wraps a secp256k1 private key scalar along with the modular
// arithmetic needed for BIP32 child key derivation.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// PrivateKeyFromBytes returns a private key from its 32-byte big-endian
// serialization.  The scalar must be in the range [1, N) where N is the
// secp256k1 curve order.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeyBytesLen {
		return nil, ErrInvalidPrivateKeyLen
	}

	var s secp256k1.ModNScalar
	overflow := s.SetByteSlice(b)
	if overflow || s.IsZero() {
		s.Zero()
		return nil, ErrPrivateKeyOutOfRange
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&s)}, nil
}

// PubKey returns the public key corresponding to this private key.
func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{key: k.key.PubKey()}
}

// Serialize returns the 32-byte big-endian serialization of the scalar.
func (k *PrivateKey) Serialize() []byte {
	return k.key.Serialize()
}

// AddScalar returns a new private key whose scalar is (k + tweak) mod N.
// ErrScalarOutOfRange is returned when the tweak is not below the curve
// order and ErrTweakedKeyIsZero when the sum is zero; both cases are
// astronomically unlikely for tweaks produced by HMAC-SHA512 but must be
// handled for a conforming BIP32 implementation.
func (k *PrivateKey) AddScalar(tweak []byte) (*PrivateKey, error) {
	var t secp256k1.ModNScalar
	if overflow := t.SetByteSlice(tweak); overflow {
		return nil, ErrScalarOutOfRange
	}

	sum := new(secp256k1.ModNScalar).Add2(&t, &k.key.Key)
	if sum.IsZero() {
		return nil, ErrTweakedKeyIsZero
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(sum)}, nil
}

// SubScalar returns a new private key whose scalar is (k - tweak) mod N.
func (k *PrivateKey) SubScalar(tweak []byte) (*PrivateKey, error) {
	var t secp256k1.ModNScalar
	if overflow := t.SetByteSlice(tweak); overflow {
		return nil, ErrScalarOutOfRange
	}

	diff := new(secp256k1.ModNScalar).Add2(t.Negate(), &k.key.Key)
	if diff.IsZero() {
		return nil, ErrTweakedKeyIsZero
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(diff)}, nil
}

// Equal returns whether both private keys hold the same scalar.
func (k *PrivateKey) Equal(other *PrivateKey) bool {
	if other == nil {
		return false
	}
	return k.key.Key.Equals(&other.key.Key)
}

// Zero overwrites the scalar with zeros.  The key is unusable afterwards.
func (k *PrivateKey) Zero() {
	k.key.Key.Zero()
}

// Sign generates an ECDSA signature over the given 32-byte hash.
func (k *PrivateKey) Sign(hash []byte) *ecdsa.Signature {
	return ecdsa.Sign(k.key, hash)
}

// ToWIF returns the Wallet Import Format serialization of the private key
// for the given network.  Compressed WIFs carry a trailing 0x01 byte which
// signals that the corresponding public key serializes compressed.
func (k *PrivateKey) ToWIF(net *chaincfg.Params, compressed bool) string {
	payload := k.key.Serialize()
	if compressed {
		payload = append(payload, 0x01)
	}
	return base58.CheckEncode(payload, net.PrivateKeyID)
}

// PrivateKeyFromWIF decodes a Wallet Import Format string, returning the key
// and whether the WIF requested a compressed public key.  The version byte
// must match the network's WIF magic.
func PrivateKeyFromWIF(wif string, net *chaincfg.Params) (*PrivateKey, bool, error) {
	decoded, version, err := base58.CheckDecode(wif)
	if err != nil {
		return nil, false, err
	}
	if version != net.PrivateKeyID {
		return nil, false, ErrWrongWIFNetwork
	}

	compressed := false
	switch len(decoded) {
	case PrivateKeyBytesLen:
	case PrivateKeyBytesLen + 1:
		if decoded[PrivateKeyBytesLen] != 0x01 {
			return nil, false, ErrMalformedWIF
		}
		compressed = true
		decoded = decoded[:PrivateKeyBytesLen]
	default:
		return nil, false, ErrMalformedWIF
	}

	key, err := PrivateKeyFromBytes(decoded)
	if err != nil {
		return nil, false, err
	}
	return key, compressed, nil
}
