// Copyright (c) 2023-2024 The hdvault developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hdkeychain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/hdvault/hdvault/chaincfg"
	"github.com/hdvault/hdvault/keys"
)

const (
	// serializedKeyLen is the length of a serialized extended key:
	// version (4) || depth (1) || parent fingerprint (4) ||
	// child number (4) || chain code (32) || key data (33).
	serializedKeyLen = 4 + 1 + 4 + 4 + 32 + 33 // 78 bytes

	// uncompressedKeyLen is the length of the non-standard variant that
	// carries a 65-byte uncompressed public key in the key data field.
	// It is accepted on deserialization but never produced.
	uncompressedKeyLen = serializedKeyLen + 32 // 110 bytes

	// base58KeyLen is the length of the base58check text form of a
	// 78-byte extended key.
	base58KeyLen = 111
)

var (
	// ErrInvalidKeyLen describes an error in which the provided
	// serialized key is not one of the recognized lengths.
	ErrInvalidKeyLen = errors.New("the provided serialized extended key length is invalid")

	// ErrInvalidKeyData describes an error in which the key data field
	// of a serialized key has an unrecognized prefix byte.
	ErrInvalidKeyData = errors.New("the serialized extended key data has an invalid prefix byte")

	// ErrBadChecksum describes an error in which the checksum encoded
	// with a base58 serialized extended key is not valid.
	ErrBadChecksum = errors.New("bad extended key checksum")

	// ErrZeroDepthNonZeroParentFP describes an error in which a depth
	// zero (master) key carries a non-zero parent fingerprint.
	ErrZeroDepthNonZeroParentFP = errors.New("zero depth with non-zero parent fingerprint")

	// ErrZeroDepthNonZeroChildNum describes an error in which a depth
	// zero (master) key carries a non-zero child number.
	ErrZeroDepthNonZeroChildNum = errors.New("zero depth with non-zero child number")

	// ErrIncompatibleNetwork describes an error in which the version
	// bytes of a serialized key do not match the expected network.
	ErrIncompatibleNetwork = errors.New("extended key version bytes do not match the network")

	// ErrSegwitUnsupported describes an error in which a segwit
	// (SLIP-0132) serialization was requested on a network that does
	// not define segwit extended key version bytes.
	ErrSegwitUnsupported = errors.New("segwit extended keys are not defined for this network")

	// ErrSerializationUnsupported describes an error in which the
	// requested legacy serialization has no version bytes defined on
	// the network.
	ErrSerializationUnsupported = errors.New("extended key serialization is not defined for this network")
)

// Serialize returns the 78-byte extended key serialization of the node.
// The private flag selects between private (0x00 || scalar) and public
// (compressed point) key data; the segwit flag selects the network's
// SLIP-0132 version bytes instead of the legacy ones.
//
// ErrWatchOnly is returned when a private serialization is requested on a
// watch-only node, and ErrSegwitUnsupported or ErrSerializationUnsupported
// when the node's network does not define the requested version bytes.
func (n *HDNode) Serialize(private, segwit bool) ([]byte, error) {
	if n.pubKey == nil {
		return nil, ErrMissingKeyMaterial
	}

	var version [4]byte
	switch {
	case private && n.privKey == nil:
		return nil, ErrWatchOnly
	case private && segwit:
		if !n.net.HasSegwitHDKeyIDs() {
			return nil, ErrSegwitUnsupported
		}
		version = n.net.HDSegwitPrivateKeyID
	case private:
		if n.net.HDPrivateKeyID == [4]byte{} {
			return nil, ErrSerializationUnsupported
		}
		version = n.net.HDPrivateKeyID
	case segwit:
		if !n.net.HasSegwitHDKeyIDs() {
			return nil, ErrSegwitUnsupported
		}
		version = n.net.HDSegwitPublicKeyID
	default:
		if n.net.HDPublicKeyID == [4]byte{} {
			return nil, ErrSerializationUnsupported
		}
		version = n.net.HDPublicKeyID
	}

	var childNum [4]byte
	binary.BigEndian.PutUint32(childNum[:], n.childNum)

	serialized := make([]byte, 0, serializedKeyLen)
	serialized = append(serialized, version[:]...)
	serialized = append(serialized, n.depth)
	serialized = append(serialized, n.parentFP...)
	serialized = append(serialized, childNum[:]...)
	serialized = append(serialized, n.chainCode...)
	if private {
		serialized = append(serialized, 0x00)
		serialized = append(serialized, n.privKey.Serialize()...)
	} else {
		serialized = append(serialized, n.pubKey.SerializeCompressed()...)
	}
	return serialized, nil
}

// SerializeB58 returns the base58check text form of Serialize: the 78
// bytes followed by the first four bytes of their double-SHA256, base58
// encoded.  For the standard networks the result is exactly 111
// characters.
func (n *HDNode) SerializeB58(private, segwit bool) (string, error) {
	serialized, err := n.Serialize(private, segwit)
	if err != nil {
		return "", err
	}
	serialized = append(serialized, doubleSha256(serialized)[:4]...)
	return base58.Encode(serialized), nil
}

// String returns the node's base58 extended key, private when the node
// holds a private key.  Nodes that have been wiped with Zero return the
// string "zeroed extended key".
func (n *HDNode) String() string {
	if n.pubKey == nil {
		return "zeroed extended key"
	}
	s, err := n.SerializeB58(n.IsPrivate(), false)
	if err != nil {
		return "invalid extended key"
	}
	return s
}

// Deserialize parses a serialized extended key for the given network.  The
// form is detected from the length: 78 bytes raw (or 110 for the
// non-standard uncompressed variant), 156 or 220 characters hex, or 111
// characters base58check.
//
// A master (depth zero) key must carry a zero parent fingerprint and child
// number.  The key data field must begin with 0x00 for a private key, whose
// version bytes must match one of the network's private key IDs and whose
// scalar must lie in [1, N), or with 0x02/0x03/0x04 for a public key, whose
// version bytes must match one of the network's public key IDs.
func Deserialize(data []byte, net *chaincfg.Params) (*HDNode, error) {
	switch len(data) {
	case serializedKeyLen, uncompressedKeyLen:
	case serializedKeyLen * 2, uncompressedKeyLen * 2:
		decoded := make([]byte, len(data)/2)
		if _, err := hex.Decode(decoded, data); err != nil {
			return nil, err
		}
		data = decoded
	case base58KeyLen:
		decoded := base58.Decode(string(data))
		if len(decoded) != serializedKeyLen+4 {
			return nil, ErrInvalidKeyLen
		}
		payload, checkSum := decoded[:serializedKeyLen], decoded[serializedKeyLen:]
		if !bytes.Equal(doubleSha256(payload)[:4], checkSum) {
			return nil, ErrBadChecksum
		}
		data = payload
	default:
		return nil, ErrInvalidKeyLen
	}

	version := data[:4]
	depth := data[4]
	var parentFP [fingerprintLen]byte
	copy(parentFP[:], data[5:9])
	childNum := binary.BigEndian.Uint32(data[9:13])
	chainCode := data[13:45]
	keyData := data[45:]

	if depth == 0 {
		if parentFP != [fingerprintLen]byte{} {
			return nil, ErrZeroDepthNonZeroParentFP
		}
		if childNum != 0 {
			return nil, ErrZeroDepthNonZeroChildNum
		}
	}

	var privKey *keys.PrivateKey
	var pubKey *keys.PublicKey
	var err error
	switch {
	case keyData[0] == 0x00 && len(keyData) == 33:
		if !versionMatches(version, net.HDPrivateKeyID, segwitID(net.HDSegwitPrivateKeyID, net)) {
			return nil, ErrIncompatibleNetwork
		}
		privKey, err = keys.PrivateKeyFromBytes(keyData[1:])
		if err != nil {
			return nil, err
		}
	case (keyData[0] == 0x02 || keyData[0] == 0x03) && len(keyData) == 33,
		keyData[0] == 0x04 && len(keyData) == 65:
		if !versionMatches(version, net.HDPublicKeyID, segwitID(net.HDSegwitPublicKeyID, net)) {
			return nil, ErrIncompatibleNetwork
		}
		pubKey, err = keys.ParsePublicKey(keyData)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrInvalidKeyData
	}

	var cc [ChainCodeLen]byte
	copy(cc[:], chainCode)
	return NewHDNode(privKey, pubKey, cc[:], depth, parentFP, childNum, net)
}

// DeserializeString parses a serialized extended key given in any of the
// textual forms Deserialize accepts.
func DeserializeString(key string, net *chaincfg.Params) (*HDNode, error) {
	return Deserialize([]byte(key), net)
}

// versionMatches reports whether version equals the legacy ID or, when the
// network defines one, the segwit ID.
func versionMatches(version []byte, legacy [4]byte, segwit *[4]byte) bool {
	if bytes.Equal(version, legacy[:]) {
		return true
	}
	return segwit != nil && bytes.Equal(version, segwit[:])
}

// segwitID returns a pointer to the segwit key ID when the network defines
// segwit extended keys, nil otherwise.
func segwitID(id [4]byte, net *chaincfg.Params) *[4]byte {
	if !net.HasSegwitHDKeyIDs() {
		return nil
	}
	return &id
}

// doubleSha256 returns SHA256(SHA256(b)), the checksum hash used by the
// base58check text form.
func doubleSha256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}
