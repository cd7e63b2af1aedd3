// Copyright (c) 2023-2024 The hdvault developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hdkeychain

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"

	"github.com/tyler-smith/go-bip39"

	"github.com/hdvault/hdvault/chaincfg"
	"github.com/hdvault/hdvault/keys"
)

const (
	// MinSeedBytes is the minimum number of bytes allowed for a seed to
	// a master node.
	MinSeedBytes = 16 // 128 bits

	// MaxSeedBytes is the maximum number of bytes allowed for a seed to
	// a master node.
	MaxSeedBytes = 64 // 512 bits

	// RecommendedSeedLen is the recommended length in bytes for a seed
	// to a master node.
	RecommendedSeedLen = 32 // 256 bits

	// brainwalletRounds is the number of HMAC-SHA256 stretch rounds
	// applied to a brainwallet password before it is used as a seed.
	brainwalletRounds = 50000

	// minStrengthBits and maxStrengthBits bound the entropy accepted by
	// NewFromRandom, per the BIP39 allowed entropy sizes.
	minStrengthBits = 128
	maxStrengthBits = 256
)

var (
	// ErrInvalidSeedLen describes an error in which the provided seed or
	// seed length is not in the allowed range.
	ErrInvalidSeedLen = errors.New("seed length must be between 128 and 512 bits")

	// ErrInvalidStrength describes an error in which the requested
	// entropy strength is not a multiple of 32 bits between 128 and 256.
	ErrInvalidStrength = errors.New("strength must be a multiple of 32 bits between 128 and 256")
)

// masterKey is the HMAC key used to derive a master node from a seed.
var masterKey = []byte("Bitcoin seed")

// GenerateSeed returns a cryptographically secure random seed that can be
// used as input to NewMaster.  The length must be between MinSeedBytes and
// MaxSeedBytes.
func GenerateSeed(length uint8) ([]byte, error) {
	if length < MinSeedBytes || length > MaxSeedBytes {
		return nil, ErrInvalidSeedLen
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// NewMaster creates a new master node for use in creating a hierarchical
// deterministic key chain from a seed of between MinSeedBytes and
// MaxSeedBytes.
//
// ErrUnusableSeed is returned when the seed stretches to a master key that
// is not a valid secp256k1 private key (probability below 1 in 2^127); the
// caller must choose a different seed.
func NewMaster(seed []byte, net *chaincfg.Params) (*HDNode, error) {
	if len(seed) < MinSeedBytes || len(seed) > MaxSeedBytes {
		return nil, ErrInvalidSeedLen
	}
	return masterFromSeed(seed, "", net)
}

// masterFromSeed performs the master key derivation without length policy:
// I = HMAC-SHA512(key="Bitcoin seed", data=seed), master key IL, chain code
// IR.  The mnemonic, if any, is retained on the node for display.
func masterFromSeed(seed []byte, mnemonic string, net *chaincfg.Params) (*HDNode, error) {
	mac := hmac.New(sha512.New, masterKey)
	mac.Write(seed)
	ilr := mac.Sum(nil)
	il, chainCode := ilr[:32], ilr[32:]

	privKey, err := keys.PrivateKeyFromBytes(il)
	if err != nil {
		if errors.Is(err, keys.ErrPrivateKeyOutOfRange) {
			return nil, ErrUnusableSeed
		}
		return nil, err
	}

	node, err := NewHDNode(privKey, nil, chainCode, 0,
		[fingerprintLen]byte{}, 0, net)
	if err != nil {
		return nil, err
	}
	node.mnemonic = mnemonic
	return node, nil
}

// NewFromMnemonic creates a master node from a BIP39 mnemonic phrase and an
// optional passphrase.  The phrase is not checksum-validated so that
// non-standard phrases keep working; the node retains the phrase, available
// through Mnemonic.
func NewFromMnemonic(mnemonic, passphrase string, net *chaincfg.Params) (*HDNode, error) {
	seed := bip39.NewSeed(mnemonic, passphrase)
	return masterFromSeed(seed, mnemonic, net)
}

// NewFromBrainwallet creates a master node from a password.  The password is
// stretched with 50,000 rounds of HMAC-SHA256, each round keyed with the
// password over the running digest (starting from 32 zero bytes), and the
// result is used as the master seed.
//
// Brainwallets are only as strong as the password; prefer NewFromRandom.
func NewFromBrainwallet(password string, net *chaincfg.Params) (*HDNode, error) {
	digest := make([]byte, sha256.Size)
	for i := 0; i < brainwalletRounds; i++ {
		mac := hmac.New(sha256.New, []byte(password))
		mac.Write(digest)
		digest = mac.Sum(digest[:0])
	}
	return masterFromSeed(digest, "", net)
}

// NewFromRandom creates a master node from fresh system entropy.  Strength
// is the entropy size in bits and must be a multiple of 32 between 128 and
// 256; 128 bits yields a 12-word mnemonic and 256 bits a 24-word one.  The
// generated mnemonic is retained on the node.
func NewFromRandom(strength int, passphrase string, net *chaincfg.Params) (*HDNode, error) {
	if strength%32 != 0 || strength < minStrengthBits || strength > maxStrengthBits {
		return nil, ErrInvalidStrength
	}

	entropy, err := bip39.NewEntropy(strength)
	if err != nil {
		return nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return NewFromMnemonic(mnemonic, passphrase, net)
}
