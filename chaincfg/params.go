// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2023-2024 The hdvault developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"errors"
	"strings"
)

// Params defines the wallet-relevant parameters for a Bitcoin-family
// network.  The hierarchical deterministic extended key magics select the
// four byte version prefixes used when serializing extended keys; segwit
// variants follow SLIP-0132.  An all-zero key ID means the network does not
// define that serialization.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Human-readable part for Bech32 encoded segwit addresses, as defined
	// in BIP 173.  Empty for networks without native segwit addresses.
	Bech32HRPSegwit string

	// Address encoding magics
	PubKeyHashAddrID byte // First byte of a P2PKH address
	ScriptHashAddrID byte // First byte of a P2SH address
	PrivateKeyID     byte // First byte of a WIF private key

	// BIP32 hierarchical deterministic extended key magics
	HDPrivateKeyID [4]byte
	HDPublicKeyID  [4]byte

	// SLIP-0132 extended key magics for segwit (P2WPKH) derivation.
	// All-zero when the network does not define segwit extended keys.
	HDSegwitPrivateKeyID [4]byte
	HDSegwitPublicKeyID  [4]byte

	// BIP44 coin type used in the hierarchical deterministic path for
	// address generation.
	HDCoinType uint32
}

// HasSegwitHDKeyIDs returns whether the network defines SLIP-0132 segwit
// extended key version bytes.
func (p *Params) HasSegwitHDKeyIDs() bool {
	return p.HDSegwitPrivateKeyID != [4]byte{} &&
		p.HDSegwitPublicKeyID != [4]byte{}
}

// MainNetParams defines the network parameters for the main Bitcoin network.
var MainNetParams = Params{
	Name: "mainnet",

	// Human-readable part for Bech32 encoded segwit addresses, as defined in
	// BIP 173.
	Bech32HRPSegwit: "bc", // always bc for main net

	// Address encoding magics
	PubKeyHashAddrID: 0x00, // starts with 1
	ScriptHashAddrID: 0x05, // starts with 3
	PrivateKeyID:     0x80, // starts with 5 (uncompressed) or K (compressed)

	// BIP32 hierarchical deterministic extended key magics
	HDPrivateKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4}, // starts with xprv
	HDPublicKeyID:  [4]byte{0x04, 0x88, 0xb2, 0x1e}, // starts with xpub

	// SLIP-0132 segwit extended key magics
	HDSegwitPrivateKeyID: [4]byte{0x04, 0xb2, 0x43, 0x0c}, // starts with zprv
	HDSegwitPublicKeyID:  [4]byte{0x04, 0xb2, 0x47, 0x46}, // starts with zpub

	// BIP44 coin type used in the hierarchical deterministic path for
	// address generation.
	HDCoinType: 0,
}

// TestNet3Params defines the network parameters for the test Bitcoin network
// (version 3).
var TestNet3Params = Params{
	Name: "testnet3",

	// Human-readable part for Bech32 encoded segwit addresses, as defined in
	// BIP 173.
	Bech32HRPSegwit: "tb", // always tb for test net

	// Address encoding magics
	PubKeyHashAddrID: 0x6f, // starts with m or n
	ScriptHashAddrID: 0xc4, // starts with 2
	PrivateKeyID:     0xef, // starts with 9 (uncompressed) or c (compressed)

	// BIP32 hierarchical deterministic extended key magics
	HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94}, // starts with tprv
	HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf}, // starts with tpub

	// SLIP-0132 segwit extended key magics
	HDSegwitPrivateKeyID: [4]byte{0x04, 0x5f, 0x18, 0xbc}, // starts with vprv
	HDSegwitPublicKeyID:  [4]byte{0x04, 0x5f, 0x1c, 0xf6}, // starts with vpub

	// BIP44 coin type used in the hierarchical deterministic path for
	// address generation.
	HDCoinType: 1,
}

// RegressionNetParams defines the network parameters for the regression test
// Bitcoin network.  It shares the testnet extended key magics, as bitcoind
// does.
var RegressionNetParams = Params{
	Name: "regtest",

	Bech32HRPSegwit: "bcrt",

	// Address encoding magics
	PubKeyHashAddrID: 0x6f, // starts with m or n
	ScriptHashAddrID: 0xc4, // starts with 2
	PrivateKeyID:     0xef,

	// BIP32 hierarchical deterministic extended key magics
	HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94}, // starts with tprv
	HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf}, // starts with tpub

	// SLIP-0132 segwit extended key magics
	HDSegwitPrivateKeyID: [4]byte{0x04, 0x5f, 0x18, 0xbc}, // starts with vprv
	HDSegwitPublicKeyID:  [4]byte{0x04, 0x5f, 0x1c, 0xf6}, // starts with vpub

	HDCoinType: 1,
}

// LitecoinParams defines the network parameters for the main Litecoin
// network.  Litecoin publishes no SLIP-0132 magics here, so segwit extended
// key serialization is unsupported.
var LitecoinParams = Params{
	Name: "litecoin",

	Bech32HRPSegwit: "ltc",

	// Address encoding magics
	PubKeyHashAddrID: 0x30, // starts with L
	ScriptHashAddrID: 0x32, // starts with M
	PrivateKeyID:     0xb0, // starts with 6 (uncompressed) or T (compressed)

	// BIP32 hierarchical deterministic extended key magics
	HDPrivateKeyID: [4]byte{0x01, 0x9d, 0x9c, 0xfe}, // starts with Ltpv
	HDPublicKeyID:  [4]byte{0x01, 0x9d, 0xa4, 0x62}, // starts with Ltub

	HDCoinType: 2,
}

// DogecoinParams defines the network parameters for the main Dogecoin
// network.  Dogecoin has neither segwit addresses nor segwit extended keys.
var DogecoinParams = Params{
	Name: "dogecoin",

	// Address encoding magics
	PubKeyHashAddrID: 0x1e, // starts with D
	ScriptHashAddrID: 0x16, // starts with 9 or A
	PrivateKeyID:     0x9e, // starts with 6 (uncompressed) or Q (compressed)

	// BIP32 hierarchical deterministic extended key magics
	HDPrivateKeyID: [4]byte{0x02, 0xfa, 0xc3, 0x98}, // starts with dgpv
	HDPublicKeyID:  [4]byte{0x02, 0xfa, 0xca, 0xfd}, // starts with dgub

	HDCoinType: 3,
}

var (
	// ErrDuplicateNet describes an error where the parameters for a
	// network could not be set due to the network already being a standard
	// network or previously-registered into this package.
	ErrDuplicateNet = errors.New("duplicate network")

	// ErrUnknownNet describes an error where no network with the requested
	// name has been registered.
	ErrUnknownNet = errors.New("unknown network")

	// ErrUnknownHDKeyID describes an error where the provided id which
	// is intended to identify the network for a hierarchical deterministic
	// private extended key is not registered.
	ErrUnknownHDKeyID = errors.New("unknown hd private extended key bytes")

	// ErrInvalidHDKeyID describes an error where the provided hierarchical
	// deterministic version bytes, or hd key id, is malformed.
	ErrInvalidHDKeyID = errors.New("invalid hd extended key version bytes")
)

var (
	registeredNets       = make(map[string]*Params)
	pubKeyHashAddrIDs    = make(map[byte]struct{})
	scriptHashAddrIDs    = make(map[byte]struct{})
	bech32SegwitPrefixes = make(map[string]struct{})
	hdPrivToPubKeyIDs    = make(map[[4]byte][]byte)
)

// Register registers the network parameters for a Bitcoin-family network.
// This may error with ErrDuplicateNet if the network is already registered
// (either due to a previous Register call, or the network being one of the
// default networks).
//
// Network parameters should be registered into this package by a main package
// as early as possible.  Then, library packages may lookup networks or
// network parameters based on inputs and work regardless of the network being
// standard or not.
func Register(params *Params) error {
	if _, ok := registeredNets[params.Name]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Name] = params
	pubKeyHashAddrIDs[params.PubKeyHashAddrID] = struct{}{}
	scriptHashAddrIDs[params.ScriptHashAddrID] = struct{}{}

	err := RegisterHDKeyID(params.HDPublicKeyID[:], params.HDPrivateKeyID[:])
	if err != nil {
		return err
	}
	if params.HasSegwitHDKeyIDs() {
		err := RegisterHDKeyID(params.HDSegwitPublicKeyID[:],
			params.HDSegwitPrivateKeyID[:])
		if err != nil {
			return err
		}
	}

	// A valid Bech32 encoded segwit address always has as prefix the
	// human-readable part for the given net followed by '1'.
	if params.Bech32HRPSegwit != "" {
		bech32SegwitPrefixes[params.Bech32HRPSegwit+"1"] = struct{}{}
	}
	return nil
}

// mustRegister performs the same function as Register except it panics if
// there is an error.  This should only be called from package init functions.
func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic("failed to register network: " + err.Error())
	}
}

// ParamsForName returns the registered network parameters with the given
// name, or ErrUnknownNet.
func ParamsForName(name string) (*Params, error) {
	params, ok := registeredNets[strings.ToLower(name)]
	if !ok {
		return nil, ErrUnknownNet
	}
	return params, nil
}

// IsPubKeyHashAddrID returns whether the id is an identifier known to prefix
// a pay-to-pubkey-hash address on any default or registered network.  This is
// used when decoding an address string into a specific address type.
func IsPubKeyHashAddrID(id byte) bool {
	_, ok := pubKeyHashAddrIDs[id]
	return ok
}

// IsScriptHashAddrID returns whether the id is an identifier known to prefix
// a pay-to-script-hash address on any default or registered network.
func IsScriptHashAddrID(id byte) bool {
	_, ok := scriptHashAddrIDs[id]
	return ok
}

// IsBech32SegwitPrefix returns whether the prefix is a known prefix for
// segwit addresses on any default or registered network.  This is used when
// decoding an address string into a specific address type.
func IsBech32SegwitPrefix(prefix string) bool {
	prefix = strings.ToLower(prefix)
	_, ok := bech32SegwitPrefixes[prefix]
	return ok
}

// RegisterHDKeyID registers a public and private hierarchical deterministic
// extended key ID pair.
//
// Non-standard HD version bytes, such as the ones documented in SLIP-0132,
// should be registered using this method for library packages to lookup key
// IDs (aka HD version bytes).  When the provided key IDs are invalid, the
// ErrInvalidHDKeyID error will be returned.
//
// Reference:
//
//	SLIP-0132 : Registered HD version bytes for BIP-0032
//	https://github.com/satoshilabs/slips/blob/master/slip-0132.md
func RegisterHDKeyID(hdPublicKeyID []byte, hdPrivateKeyID []byte) error {
	if len(hdPublicKeyID) != 4 || len(hdPrivateKeyID) != 4 {
		return ErrInvalidHDKeyID
	}

	var keyID [4]byte
	copy(keyID[:], hdPrivateKeyID)
	hdPrivToPubKeyIDs[keyID] = hdPublicKeyID

	return nil
}

// HDPrivateKeyToPublicKeyID accepts a private hierarchical deterministic
// extended key id and returns the associated public key id.  When the
// provided id is not registered, the ErrUnknownHDKeyID error will be
// returned.
func HDPrivateKeyToPublicKeyID(id []byte) ([]byte, error) {
	if len(id) != 4 {
		return nil, ErrUnknownHDKeyID
	}

	var key [4]byte
	copy(key[:], id)
	pubBytes, ok := hdPrivToPubKeyIDs[key]
	if !ok {
		return nil, ErrUnknownHDKeyID
	}

	return pubBytes, nil
}

func init() {
	// Register all default networks when the package is initialized.
	mustRegister(&MainNetParams)
	mustRegister(&TestNet3Params)
	mustRegister(&RegressionNetParams)
	mustRegister(&LitecoinParams)
	mustRegister(&DogecoinParams)
}
