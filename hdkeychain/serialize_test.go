// Copyright (c) 2023-2024 The hdvault developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hdkeychain

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/hdvault/hdvault/chaincfg"
)

// TestSerializeRaw checks the 78-byte layout and its hex form against the
// vector 1 master key.
func TestSerializeRaw(t *testing.T) {
	master := testVec1Master(t)

	wantHex := "0488ade4000000000000000000" +
		"873dff81c02f525623fd1fe5167eac3a55a049de3d314bb42ee227ffed37d508" +
		"00e8f32e723decf4051aefac8e2c93c9c5b214313817cdb01a1494b917c8436b35"

	serialized, err := master.Serialize(true, false)
	require.NoError(t, err)
	require.Len(t, serialized, 78)
	require.Equal(t, wantHex, hex.EncodeToString(serialized))

	// The raw and hex forms both deserialize to the same node.
	fromRaw, err := Deserialize(serialized, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.True(t, master.Equal(fromRaw))

	fromHex, err := Deserialize([]byte(wantHex), &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.True(t, master.Equal(fromHex))
}

// TestSerializeVersionBytes checks the network and SLIP-0132 selection of
// extended key version bytes for the vector 1 seed.
func TestSerializeVersionBytes(t *testing.T) {
	tests := []struct {
		name     string
		net      *chaincfg.Params
		segwit   bool
		wantPriv string
		wantPub  string
	}{
		{
			name:     "mainnet segwit",
			net:      &chaincfg.MainNetParams,
			segwit:   true,
			wantPriv: "zprvAWgYBBk7JR8GjzqSzmunMCS7dAbwpYTCs1YUMDXqduMA5JFHZ3iX5s2UkAR6vBdcCYYa1S5o1fVLrKsrnpCQ4WpUd6aVUWP1bS2Yy5DoaKv",
			wantPub:  "zpub6jftahH18ngZxUuv6oSniLNrBCSSE1B4EEU59bwTCEt8x6aS6b2mdfLxbS4QS53g85SWWP6wexqeer516433gYpZQoJie2tcMYdJ1SYYYAL",
		},
		{
			name:     "testnet legacy",
			net:      &chaincfg.TestNet3Params,
			wantPriv: "tprv8ZgxMBicQKsPeDgjzdC36fs6bMjGApWDNLR9erAXMs5skhMv36j9MV5ecvfavji5khqjWaWSFhN3YcCUUdiKH6isR4Pwy3U5y5egddBr16m",
			wantPub:  "tpubD6NzVbkrYhZ4XgiXtGrdW5XDAPFCL9h7we1vwNCpn8tGbBcgfVYjXyhWo4E1xkh56hjod1RhGjxbaTLV3X4FyWuejifB9jusQ46QzG87VKp",
		},
		{
			name:     "litecoin legacy",
			net:      &chaincfg.LitecoinParams,
			wantPriv: "Ltpv71G8qDifUiNetP6nmxPA5STrUVmv2J9YSmXajv8VsYBUyuPhvN9xCaQrfX2wo5xxJNtEazYCFRUu5FmokYMM79pcqz8pcdo4rNXAFPgyB4k",
			wantPub:  "Ltub2SSUS19CirucWFod2ZsYA2J4v4U76YiCXHdcQttnoiy5aGanFHCPDBX7utfG6f95u1cUbZJNafmvzNCzZZJTw1EmyFoL8u1gJbGM8ipu491",
		},
		{
			name:     "dogecoin legacy",
			net:      &chaincfg.DogecoinParams,
			wantPriv: "dgpv51eADS3spNJh9Gjth94XcPwAczvQaDJs9rqx11kvxKs6r3Ek8AgERHhjLs6mzXQFHRzQqGwqdeoDkZmr8jQMBfi43b7sT3sx3cCSk5fGeUR",
			wantPub:  "dgub8kXBZ7ymNWy2S8Q3jNgVjFUm5ZJ3QLLaSTdAA89ukSv7Q6MSXwE14b7Nv6eDpE9JJXinTKc8LeLVu19uDPrm5uJuhpKNzV2kAgncwo6bNpP",
		},
	}

	seed, err := hex.DecodeString(testVec1Seed)
	require.NoError(t, err)

	for _, test := range tests {
		master, err := NewMaster(seed, test.net)
		require.NoError(t, err, test.name)

		gotPriv, err := master.SerializeB58(true, test.segwit)
		require.NoError(t, err, test.name)
		require.Equal(t, test.wantPriv, gotPriv, test.name)

		gotPub, err := master.SerializeB58(false, test.segwit)
		require.NoError(t, err, test.name)
		require.Equal(t, test.wantPub, gotPub, test.name)

		// Both text forms round-trip through Deserialize.
		fromPriv, err := DeserializeString(gotPriv, test.net)
		require.NoError(t, err, test.name)
		require.True(t, master.Equal(fromPriv), "%s: deserialized to %s",
			test.name, spew.Sdump(fromPriv))

		fromPub, err := DeserializeString(gotPub, test.net)
		require.NoError(t, err, test.name)
		require.True(t, master.PublicCopy().Equal(fromPub),
			"%s: deserialized to %s", test.name, spew.Sdump(fromPub))
	}
}

// TestSerializeUnsupported checks that networks without SLIP-0132 magics
// refuse segwit serialization.
func TestSerializeUnsupported(t *testing.T) {
	seed, err := hex.DecodeString(testVec1Seed)
	require.NoError(t, err)

	for _, net := range []*chaincfg.Params{
		&chaincfg.LitecoinParams, &chaincfg.DogecoinParams,
	} {
		master, err := NewMaster(seed, net)
		require.NoError(t, err, net.Name)

		_, err = master.Serialize(true, true)
		require.ErrorIs(t, err, ErrSegwitUnsupported, net.Name)
		_, err = master.Serialize(false, true)
		require.ErrorIs(t, err, ErrSegwitUnsupported, net.Name)
	}
}

// TestStringer checks String on private, watch-only and zeroed nodes.
func TestStringer(t *testing.T) {
	master := testVec1Master(t)

	require.True(t, strings.HasPrefix(master.String(), "xprv"))
	require.Len(t, master.String(), 111)
	require.True(t, strings.HasPrefix(master.PublicCopy().String(), "xpub"))

	node, err := master.Derive(0, false)
	require.NoError(t, err)
	node.Zero()
	require.Equal(t, "zeroed extended key", node.String())
}

// TestDeserializeErrors exercises the rejection paths of Deserialize.
func TestDeserializeErrors(t *testing.T) {
	master := testVec1Master(t)
	net := &chaincfg.MainNetParams

	serialized, err := master.Serialize(true, false)
	require.NoError(t, err)
	b58, err := master.SerializeB58(true, false)
	require.NoError(t, err)

	// Unrecognized lengths.
	_, err = Deserialize(serialized[:77], net)
	require.ErrorIs(t, err, ErrInvalidKeyLen)
	_, err = Deserialize(append(serialized, 0x00), net)
	require.ErrorIs(t, err, ErrInvalidKeyLen)
	_, err = Deserialize(nil, net)
	require.ErrorIs(t, err, ErrInvalidKeyLen)

	// A flipped character breaks the base58 checksum.
	corrupt := []byte(b58)
	if corrupt[50] == 'a' {
		corrupt[50] = 'b'
	} else {
		corrupt[50] = 'a'
	}
	_, err = Deserialize(corrupt, net)
	require.ErrorIs(t, err, ErrBadChecksum)

	// Version bytes from a foreign network are rejected.
	_, err = DeserializeString(b58, &chaincfg.TestNet3Params)
	require.ErrorIs(t, err, ErrIncompatibleNetwork)

	// Private versions on public key data and vice versa are rejected.
	pubData, err := master.Serialize(false, false)
	require.NoError(t, err)
	swapped := append([]byte{}, pubData...)
	copy(swapped[:4], net.HDPrivateKeyID[:])
	_, err = Deserialize(swapped, net)
	require.ErrorIs(t, err, ErrIncompatibleNetwork)

	// Master keys must have zero parent fingerprint and child number.
	badFP := append([]byte{}, serialized...)
	badFP[5] = 0x01
	_, err = Deserialize(badFP, net)
	require.ErrorIs(t, err, ErrZeroDepthNonZeroParentFP)

	badChild := append([]byte{}, serialized...)
	badChild[12] = 0x01
	_, err = Deserialize(badChild, net)
	require.ErrorIs(t, err, ErrZeroDepthNonZeroChildNum)

	// An unknown key data prefix byte is rejected.
	badPrefix := append([]byte{}, pubData...)
	badPrefix[45] = 0x05
	_, err = Deserialize(badPrefix, net)
	require.ErrorIs(t, err, ErrInvalidKeyData)

	// A private scalar of zero is out of range.
	zeroKey := append([]byte{}, serialized...)
	for i := 46; i < 78; i++ {
		zeroKey[i] = 0
	}
	_, err = Deserialize(zeroKey, net)
	require.Error(t, err)
}

// TestDeserializeUncompressed checks that the non-standard 110-byte variant
// carrying an uncompressed public key is accepted and normalized.
func TestDeserializeUncompressed(t *testing.T) {
	master := testVec1Master(t)
	net := &chaincfg.MainNetParams

	compact, err := master.Serialize(false, false)
	require.NoError(t, err)

	uncompressed := append([]byte{}, compact[:45]...)
	uncompressed = append(uncompressed,
		master.PubKey().SerializeUncompressed()...)
	require.Len(t, uncompressed, 110)

	node, err := Deserialize(uncompressed, net)
	require.NoError(t, err)
	require.True(t, master.PublicCopy().Equal(node))

	// Hex form of the same variant.
	hexForm := []byte(hex.EncodeToString(uncompressed))
	node, err = Deserialize(hexForm, net)
	require.NoError(t, err)
	require.True(t, master.PublicCopy().Equal(node))

	// Serialization always re-emits the compressed form.
	out, err := node.Serialize(false, false)
	require.NoError(t, err)
	require.Equal(t, compact, out)
}

// TestDeserializeSegwitVersions checks that segwit serialized keys parse for
// the owning network and keep their watch-only or private nature.
func TestDeserializeSegwitVersions(t *testing.T) {
	master := testVec1Master(t)
	net := &chaincfg.MainNetParams

	zprv, err := master.SerializeB58(true, true)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(zprv, "zprv"))
	node, err := DeserializeString(zprv, net)
	require.NoError(t, err)
	require.True(t, master.Equal(node))

	zpub, err := master.SerializeB58(false, true)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(zpub, "zpub"))
	node, err = DeserializeString(zpub, net)
	require.NoError(t, err)
	require.False(t, node.IsPrivate())
	require.True(t, master.PublicCopy().Equal(node))

	// Litecoin does not know the zprv magic.
	_, err = DeserializeString(zprv, &chaincfg.LitecoinParams)
	require.ErrorIs(t, err, ErrIncompatibleNetwork)
}
