// Copyright (c) 2023-2024 The hdvault developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hdkeychain

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hdvault/hdvault/chaincfg"
	"github.com/hdvault/hdvault/keys"
)

const (
	// HardenedKeyStart is the index at which a hardened (prime) key
	// starts.  Each extended key has 2^31 normal child keys and 2^31
	// hardened child keys, so the normal child keys use indices
	// [0, 2^31-1] and the hardened child keys use [2^31, 2^32-1].
	HardenedKeyStart uint32 = 0x80000000 // 2^31

	// ChainCodeLen is the required length of a chain code.
	ChainCodeLen = 32

	// fingerprintLen is the length of a parent fingerprint.
	fingerprintLen = 4

	// maxDepth is the maximum depth of the derivation tree.  The depth
	// field of the serialization format is a single byte.
	maxDepth = 255
)

var (
	// ErrInvalidChainCodeLen describes an error in which the provided
	// chain code is not exactly 32 bytes.
	ErrInvalidChainCodeLen = errors.New("chain code must be 32 bytes")

	// ErrMissingKeyMaterial describes an error in which a node was
	// constructed with neither a private nor a public key.
	ErrMissingKeyMaterial = errors.New("either a private or a public key is required")

	// ErrKeyMismatch describes an error in which a supplied public key
	// does not match the public key implied by the supplied private key.
	ErrKeyMismatch = errors.New("private key does not match the supplied public key")

	// ErrInvalidParamLen describes an error in which a fixed-length
	// parameter (depth, fingerprint, or child number) was supplied in a
	// hex or byte form of the wrong length.
	ErrInvalidParamLen = errors.New("invalid parameter length")

	// ErrInvalidChildNumber describes an error in which a caller
	// attempted to derive a child with a number outside [0, 2^31).
	ErrInvalidChildNumber = errors.New("child number must be in the range [0, 2^31)")

	// ErrInvalidPath describes an error in which a derivation path does
	// not follow the m/0'/1/2 grammar.
	ErrInvalidPath = errors.New("invalid derivation path")

	// ErrDeriveBeyondMaxDepth describes an error in which the caller
	// has attempted to derive more than 255 keys from a master node.
	ErrDeriveBeyondMaxDepth = errors.New("cannot derive a key with more than 255 indices in its path")

	// ErrDerivedKeyTooLarge describes an error in which the derivation
	// tweak for a child is not below the curve order.  Callers that hit
	// this (roughly 1 in 2^127) case may simply move to the next child
	// number; the library never retries on its own since doing so would
	// silently change derived addresses.
	ErrDerivedKeyTooLarge = errors.New("the derived key is too large")

	// ErrDerivedKeyIsZero describes an error in which derivation
	// produced a zero key (or the point at infinity).  As with
	// ErrDerivedKeyTooLarge, the caller may move to the next child.
	ErrDerivedKeyIsZero = errors.New("the derived key is zero")

	// ErrWatchOnly describes an error in which an operation that
	// requires a private key (hardened derivation, private serialization,
	// WIF export) was attempted on a watch-only node.
	ErrWatchOnly = errors.New("operation requires a private key")

	// ErrInvalidChild describes an error in which the node passed to
	// CrackPrivateKey is not a crackable child of the parent: either its
	// parent fingerprint does not match or it was derived hardened.
	ErrInvalidChild = errors.New("not a valid child of this node")

	// ErrUnusableSeed describes an error in which the provided seed is
	// not usable due to the derived master key falling outside of the
	// valid range for secp256k1 private keys.  This error indicates the
	// caller must choose another seed.
	ErrUnusableSeed = errors.New("unusable seed")
)

// HDNode represents one node, master or derived, in a BIP32 hierarchical
// deterministic key tree.  Nodes are immutable: every derivation returns a
// new node and no method mutates the receiver, so nodes may be shared
// freely between goroutines.  The sole exception is Zero, which explicitly
// wipes the key material.
type HDNode struct {
	privKey   *keys.PrivateKey // nil for watch-only nodes
	pubKey    *keys.PublicKey
	chainCode []byte
	depth     uint8
	parentFP  []byte
	childNum  uint32
	mnemonic  string
	net       *chaincfg.Params
}

// NewHDNode constructs a node from its parts and validates the BIP32
// construction invariants: the chain code must be 32 bytes, at least one of
// the private and public keys must be supplied, a supplied public key must
// match the one implied by the private key, and a depth of zero (a master
// node) requires an all-zero parent fingerprint and a zero child number.
func NewHDNode(privKey *keys.PrivateKey, pubKey *keys.PublicKey,
	chainCode []byte, depth uint8, parentFP [fingerprintLen]byte,
	childNum uint32, net *chaincfg.Params) (*HDNode, error) {

	if len(chainCode) != ChainCodeLen {
		return nil, ErrInvalidChainCodeLen
	}
	if privKey == nil && pubKey == nil {
		return nil, ErrMissingKeyMaterial
	}
	if privKey != nil {
		implied := privKey.PubKey()
		if pubKey != nil && !implied.IsEqual(pubKey) {
			return nil, ErrKeyMismatch
		}
		pubKey = implied
	}
	if depth == 0 {
		if parentFP != [fingerprintLen]byte{} {
			return nil, ErrZeroDepthNonZeroParentFP
		}
		if childNum != 0 {
			return nil, ErrZeroDepthNonZeroChildNum
		}
	}

	cc := make([]byte, ChainCodeLen)
	copy(cc, chainCode)
	fp := make([]byte, fingerprintLen)
	copy(fp, parentFP[:])
	return &HDNode{
		privKey:   privKey,
		pubKey:    pubKey,
		chainCode: cc,
		depth:     depth,
		parentFP:  fp,
		childNum:  childNum,
		net:       net,
	}, nil
}

// DepthFromHex parses a depth supplied as exactly two hex characters.
func DepthFromHex(s string) (uint8, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, err
	}
	if len(b) != 1 {
		return 0, ErrInvalidParamLen
	}
	return b[0], nil
}

// FingerprintFromHex parses a parent fingerprint supplied as exactly eight
// hex characters.  A leading "0x" is tolerated.
func FingerprintFromHex(s string) ([fingerprintLen]byte, error) {
	var fp [fingerprintLen]byte
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fp, err
	}
	if len(b) != fingerprintLen {
		return fp, ErrInvalidParamLen
	}
	copy(fp[:], b)
	return fp, nil
}

// ChildNumberFromHex parses a child number supplied as exactly eight hex
// characters.
func ChildNumberFromHex(s string) (uint32, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, ErrInvalidParamLen
	}
	return binary.BigEndian.Uint32(b), nil
}

// Depth returns the current derivation level with respect to the root.
// The root has depth zero.
func (n *HDNode) Depth() uint8 {
	return n.depth
}

// ParentFingerprint returns a copy of the fingerprint of the parent node,
// all zeros for a master node.
func (n *HDNode) ParentFingerprint() []byte {
	fp := make([]byte, fingerprintLen)
	copy(fp, n.parentFP)
	return fp
}

// ChildNumber returns the child number used to derive this node from its
// parent.  Hardened children report numbers >= HardenedKeyStart.
func (n *HDNode) ChildNumber() uint32 {
	return n.childNum
}

// ChainCode returns a copy of the 32-byte chain code.
func (n *HDNode) ChainCode() []byte {
	cc := make([]byte, ChainCodeLen)
	copy(cc, n.chainCode)
	return cc
}

// IsPrivate returns whether the node holds a private key.  Watch-only
// nodes can derive non-hardened children and addresses but cannot spend.
func (n *HDNode) IsPrivate() bool {
	return n.privKey != nil
}

// Network returns the network parameters the node serializes for.
func (n *HDNode) Network() *chaincfg.Params {
	return n.net
}

// Mnemonic returns the mnemonic phrase the node was constructed from, if
// any.  It is retained for display only and plays no part in derivation.
func (n *HDNode) Mnemonic() string {
	return n.mnemonic
}

// Identifier returns the Hash160 of the compressed public key.  The
// identifier is what traditional addresses encode, but it should not be
// shown in base58 form itself lest it be mistaken for one.
func (n *HDNode) Identifier() []byte {
	return keys.Hash160(n.pubKey.SerializeCompressed())
}

// Fingerprint returns the first four bytes of the identifier.
func (n *HDNode) Fingerprint() []byte {
	return n.Identifier()[:fingerprintLen]
}

// PrivateKey returns the node's private key, or ErrWatchOnly when the node
// does not hold one.
func (n *HDNode) PrivateKey() (*keys.PrivateKey, error) {
	if n.privKey == nil {
		return nil, ErrWatchOnly
	}
	return n.privKey, nil
}

// PubKey returns the node's public key.
func (n *HDNode) PubKey() *keys.PublicKey {
	return n.pubKey
}

// Address returns an address for the node's public key in the network's
// preferred format.  See keys.PublicKey.Address.
func (n *HDNode) Address(witnessVersion byte) (string, error) {
	return n.pubKey.Address(n.net, true, witnessVersion)
}

// WIF returns the Wallet Import Format serialization of the node's private
// key, or ErrWatchOnly when the node does not hold one.
func (n *HDNode) WIF(compressed bool) (string, error) {
	if n.privKey == nil {
		return "", ErrWatchOnly
	}
	return n.privKey.ToWIF(n.net, compressed), nil
}

// Child derives the child node with the given number, inferring hardened
// derivation from the sign: negative numbers derive the hardened child of
// the absolute value, non-negative numbers derive normally.  Numbers whose
// absolute value is not below 2^31 fail with ErrInvalidChildNumber.
//
// Since -0 cannot be expressed, the hardened 0th child must be requested
// explicitly with Derive(0, true).
func (n *HDNode) Child(num int64) (*HDNode, error) {
	if num >= int64(HardenedKeyStart) || num <= -int64(HardenedKeyStart) {
		return nil, ErrInvalidChildNumber
	}
	if num < 0 {
		return n.Derive(uint32(-num), true)
	}
	return n.Derive(uint32(num), false)
}

// Derive returns the child node for the given child number, hardened or
// not.  The number is the index within its class, so it must be below 2^31
// even for hardened children; the serialized child number of a hardened
// child is num+2^31.
//
// Hardened derivation requires a private key and fails with ErrWatchOnly
// on watch-only nodes.  When the node holds a private key the child does
// too; otherwise the child is watch-only, derived through public point
// arithmetic.  Both procedures agree: deriving a non-hardened child
// privately and stripping it yields the same node as deriving from the
// stripped parent.
func (n *HDNode) Derive(num uint32, hardened bool) (*HDNode, error) {
	if num >= HardenedKeyStart {
		return nil, ErrInvalidChildNumber
	}
	if n.depth == maxDepth {
		return nil, ErrDeriveBeyondMaxDepth
	}

	// Assemble the 37 bytes of HMAC input: 0x00 || privKey || num for
	// hardened children, serP(pubKey) || num otherwise.  The serialized
	// child number of a hardened child carries the 2^31 offset.
	childNum := num
	data := make([]byte, 0, 37)
	if hardened {
		if n.privKey == nil {
			return nil, ErrWatchOnly
		}
		childNum += HardenedKeyStart
		data = append(data, 0x00)
		data = append(data, n.privKey.Serialize()...)
	} else {
		data = append(data, n.pubKey.SerializeCompressed()...)
	}
	var num4 [4]byte
	binary.BigEndian.PutUint32(num4[:], childNum)
	data = append(data, num4[:]...)

	// I = HMAC-SHA512(key = parent chain code, data), split into the
	// derivation tweak IL and the child chain code IR.
	mac := hmac.New(sha512.New, n.chainCode)
	mac.Write(data)
	ilr := mac.Sum(nil)
	il, childChainCode := ilr[:32], ilr[32:]

	var childPriv *keys.PrivateKey
	var childPub *keys.PublicKey
	var err error
	if n.privKey != nil {
		// childKey = (IL + parentKey) mod N
		childPriv, err = n.privKey.AddScalar(il)
	} else {
		// childKey = IL*G + parentPubKey
		childPub, err = n.pubKey.AddScalarMulBase(il)
	}
	if err != nil {
		return nil, mapTweakError(err)
	}

	// The parent fingerprint is recomputed from the parent's public key
	// rather than copied from untrusted state.
	var parentFP [fingerprintLen]byte
	copy(parentFP[:], n.Fingerprint())
	return NewHDNode(childPriv, childPub, childChainCode, n.depth+1,
		parentFP, childNum, n.net)
}

// DeriveWatchOnly derives a child like Derive and strips the private key
// from the result.
func (n *HDNode) DeriveWatchOnly(num uint32, hardened bool) (*HDNode, error) {
	child, err := n.Derive(num, hardened)
	if err != nil {
		return nil, err
	}
	if !child.IsPrivate() {
		return child, nil
	}
	return child.PublicCopy(), nil
}

// PublicCopy returns a watch-only sibling of the node with the private key
// and mnemonic stripped.  For nodes that are already watch-only the node
// itself is returned, since nodes are immutable.
func (n *HDNode) PublicCopy() *HDNode {
	if n.privKey == nil && n.mnemonic == "" {
		return n
	}
	node := *n
	node.privKey = nil
	node.mnemonic = ""
	return &node
}

// DerivePath walks a textual derivation path from the node.  Paths look
// like
//
//	m/44'/0'/0'/0/5
//
// where the leading segment is "m" (keep private material) or "M" (strip
// the result to watch-only), each following segment is a decimal child
// number below 2^31, and a trailing ' or p marks a hardened step.  A
// trailing ".pub" suffix is equivalent to a capital-M root.  The result is
// only stripped at the end: intermediate hardened steps may use the private
// key even when the final result is watch-only.
func (n *HDNode) DerivePath(path string) (*HDNode, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	watchOnly := false
	if strings.HasSuffix(path, ".pub") {
		watchOnly = true
		path = strings.TrimSuffix(path, ".pub")
	}

	parts := strings.Split(path, "/")
	switch parts[0] {
	case "m":
	case "M":
		watchOnly = true
	default:
		return nil, fmt.Errorf("%w: path must begin with m or M", ErrInvalidPath)
	}

	node := n
	for _, part := range parts[1:] {
		hardened := false
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "p") {
			hardened = true
			part = part[:len(part)-1]
		}
		num, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid child number %q",
				ErrInvalidPath, part)
		}
		node, err = node.Derive(uint32(num), hardened)
		if err != nil {
			return nil, err
		}
	}
	if watchOnly {
		return node.PublicCopy(), nil
	}
	return node, nil
}

// CrackPrivateKey recovers the private parent node from this watch-only
// parent and any non-hardened private child of it.  This is the well-known
// BIP32 weakness: the non-hardened derivation tweak IL is computable from
// public information, so childKey - IL recovers the parent key.
//
// The child must carry this node's fingerprint and must not be hardened;
// otherwise ErrInvalidChild is returned.  ErrWatchOnly is returned when the
// child holds no private key.
func (n *HDNode) CrackPrivateKey(child *HDNode) (*HDNode, error) {
	if !bytes.Equal(child.parentFP, n.Fingerprint()) {
		return nil, fmt.Errorf("%w: parent fingerprint mismatch", ErrInvalidChild)
	}
	if child.childNum >= HardenedKeyStart {
		return nil, fmt.Errorf("%w: hardened children cannot reveal their parent",
			ErrInvalidChild)
	}
	if child.privKey == nil {
		return nil, ErrWatchOnly
	}

	// Recompute IL exactly as non-hardened derivation does, from public
	// information only.
	data := make([]byte, 0, 37)
	data = append(data, n.pubKey.SerializeCompressed()...)
	var num4 [4]byte
	binary.BigEndian.PutUint32(num4[:], child.childNum)
	data = append(data, num4[:]...)
	mac := hmac.New(sha512.New, n.chainCode)
	mac.Write(data)
	il := mac.Sum(nil)[:32]

	// parentKey = (childKey - IL) mod N
	parentPriv, err := child.privKey.SubScalar(il)
	if err != nil {
		return nil, mapTweakError(err)
	}

	var parentFP [fingerprintLen]byte
	copy(parentFP[:], n.parentFP)
	return NewHDNode(parentPriv, nil, n.chainCode, n.depth, parentFP,
		n.childNum, n.net)
}

// Equal returns whether both nodes describe the same key: chain code,
// depth, parent fingerprint, child number, key material, and network all
// match.  The retained mnemonic is ignored.
func (n *HDNode) Equal(other *HDNode) bool {
	if other == nil {
		return false
	}
	if n.IsPrivate() != other.IsPrivate() {
		return false
	}
	if n.privKey != nil && !n.privKey.Equal(other.privKey) {
		return false
	}
	return n.pubKey.IsEqual(other.pubKey) &&
		bytes.Equal(n.chainCode, other.chainCode) &&
		n.depth == other.depth &&
		bytes.Equal(n.parentFP, other.parentFP) &&
		n.childNum == other.childNum &&
		n.net.Name == other.net.Name
}

// Zero manually wipes the key material from the node.  The node is
// unusable afterwards.  This is the one mutation the type allows; use it
// when key material must not linger in memory.
func (n *HDNode) Zero() {
	if n.privKey != nil {
		n.privKey.Zero()
	}
	for i := range n.chainCode {
		n.chainCode[i] = 0
	}
	for i := range n.parentFP {
		n.parentFP[i] = 0
	}
	n.privKey = nil
	n.pubKey = nil
	n.mnemonic = ""
	n.childNum = 0
	n.depth = 0
}

// mapTweakError translates keys package tweak failures into the derivation
// errors callers are documented to handle.
func mapTweakError(err error) error {
	switch {
	case errors.Is(err, keys.ErrScalarOutOfRange):
		return ErrDerivedKeyTooLarge
	case errors.Is(err, keys.ErrTweakedKeyIsZero):
		return ErrDerivedKeyIsZero
	}
	return err
}
