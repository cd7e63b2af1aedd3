// Copyright (c) 2023-2024 The hdvault developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keys

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/hdvault/hdvault/chaincfg"
)

var (
	// ErrNoSegwitAddresses describes an error in which a bech32 address
	// was requested on a network without a bech32 human-readable part.
	ErrNoSegwitAddresses = errors.New("network does not define segwit addresses")

	// ErrUnsupportedWitnessVersion describes an error in which an address
	// was requested for a witness version other than 0 or 1.
	ErrUnsupportedWitnessVersion = errors.New("unsupported witness version")
)

// PublicKey wraps a secp256k1 curve point along with the point arithmetic
// needed for BIP32 public child key derivation and address formatting.
type PublicKey struct {
	key *btcec.PublicKey
}

// ParsePublicKey parses a serialized public key in compressed (0x02/0x03),
// uncompressed (0x04) or hybrid form.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	return &PublicKey{key: key}, nil
}

// SerializeCompressed returns the 33-byte compressed serialization.
func (p *PublicKey) SerializeCompressed() []byte {
	return p.key.SerializeCompressed()
}

// SerializeUncompressed returns the 65-byte uncompressed serialization.
func (p *PublicKey) SerializeUncompressed() []byte {
	return p.key.SerializeUncompressed()
}

// IsEqual returns whether both public keys describe the same curve point.
func (p *PublicKey) IsEqual(other *PublicKey) bool {
	if other == nil {
		return false
	}
	return p.key.IsEqual(other.key)
}

// AddScalarMulBase computes tweak*G + P using the canonical secp256k1
// generator, which is the public half of BIP32 child key derivation.
// ErrScalarOutOfRange is returned when the tweak is not below the curve
// order and ErrTweakedKeyIsZero when the result is the point at infinity.
func (p *PublicKey) AddScalarMulBase(tweak []byte) (*PublicKey, error) {
	var t secp256k1.ModNScalar
	if overflow := t.SetByteSlice(tweak); overflow {
		return nil, ErrScalarOutOfRange
	}

	// tweakG = tweak * G
	var tweakG secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&t, &tweakG)

	// result = tweakG + P
	var point, result secp256k1.JacobianPoint
	p.key.AsJacobian(&point)
	secp256k1.AddNonConst(&tweakG, &point, &result)
	if (result.X.IsZero() && result.Y.IsZero()) || result.Z.IsZero() {
		return nil, ErrTweakedKeyIsZero
	}

	result.ToAffine()
	return &PublicKey{key: secp256k1.NewPublicKey(&result.X, &result.Y)}, nil
}

// Hash160 returns RIPEMD160(SHA256(serializedKey)).
func (p *PublicKey) Hash160(compressed bool) []byte {
	if compressed {
		return btcutil.Hash160(p.key.SerializeCompressed())
	}
	return btcutil.Hash160(p.key.SerializeUncompressed())
}

// AddressPubKeyHash returns the base58check P2PKH address for the key on the
// given network.
func (p *PublicKey) AddressPubKeyHash(net *chaincfg.Params, compressed bool) string {
	return base58.CheckEncode(p.Hash160(compressed), net.PubKeyHashAddrID)
}

// WitnessAddress returns the bech32 encoded segwit address for the key on
// the given network.  Witness version 0 yields a P2WPKH address over the
// Hash160 of the compressed key; witness version 1 yields a bech32m address
// over the 32-byte x-only key.
func (p *PublicKey) WitnessAddress(net *chaincfg.Params, witnessVersion byte) (string, error) {
	if net.Bech32HRPSegwit == "" {
		return "", ErrNoSegwitAddresses
	}

	var program []byte
	switch witnessVersion {
	case 0:
		program = p.Hash160(true)
	case 1:
		program = p.key.SerializeCompressed()[1:]
	default:
		return "", ErrUnsupportedWitnessVersion
	}

	converted, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", err
	}
	data := append([]byte{witnessVersion}, converted...)
	if witnessVersion == 0 {
		return bech32.Encode(net.Bech32HRPSegwit, data)
	}
	return bech32.EncodeM(net.Bech32HRPSegwit, data)
}

// Address returns an address for the key in the network's preferred format:
// a native segwit address when the network defines a bech32 prefix, and a
// base58check P2PKH address otherwise.
func (p *PublicKey) Address(net *chaincfg.Params, compressed bool, witnessVersion byte) (string, error) {
	if net.Bech32HRPSegwit != "" {
		return p.WitnessAddress(net, witnessVersion)
	}
	return p.AddressPubKeyHash(net, compressed), nil
}

// Verify reports whether the signature is a valid ECDSA signature of the
// given 32-byte hash under this key.
func (p *PublicKey) Verify(hash []byte, sig *ecdsa.Signature) bool {
	return sig.Verify(hash, p.key)
}

// Hash160 returns RIPEMD160(SHA256(data)).
func Hash160(data []byte) []byte {
	return btcutil.Hash160(data)
}
