// Copyright (c) 2023-2024 The hdvault developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hdvault/hdvault/chaincfg"
	"github.com/hdvault/hdvault/hdkeychain"
)

func testWallet(t *testing.T) *Wallet {
	t.Helper()

	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	w, err := New(master, 0)
	require.NoError(t, err)
	return w
}

// TestNewWallet checks the default account layout and the account extended
// keys against reference vectors.
func TestNewWallet(t *testing.T) {
	w := testWallet(t)

	require.False(t, w.IsWatchOnly())
	require.Equal(t, []uint32{LegacyPurpose, SegwitPurpose}, w.Purposes())

	xpub, err := w.AccountExtendedKey(LegacyPurpose, false)
	require.NoError(t, err)
	require.Equal(t,
		"xpub6CDEarkRoiwWPj3n3gYygGwgoGchxYg3g6Zs5L2nB4B6wdojzcWCKKHMu9XuY1GyYygRfrVembjAko1T5xTsxj7ecKXxEPzDxx7nCK8Dxtx",
		xpub)

	zpub, err := w.AccountExtendedKey(SegwitPurpose, false)
	require.NoError(t, err)
	require.Equal(t,
		"zpub6qfp6hKyMTw1jdnUQGr4xihYxp7rQmAPp67pk4YYAcZBdRisqyaqh1Z2N1RVCNtEVW6c4eLuPZctjUx3QVBQEQPFNaR5uvumrzUbGRQ8voQ",
		zpub)

	// Private serialization works on a private wallet.
	zprv, err := w.AccountExtendedKey(SegwitPurpose, true)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(zprv, "zprv"))

	_, err = w.AccountExtendedKey(49, false)
	require.ErrorIs(t, err, ErrUnknownPurpose)
}

// TestReceiveAddresses checks sequential handout against reference vectors
// and the membership bookkeeping.
func TestReceiveAddresses(t *testing.T) {
	w := testWallet(t)

	wantSegwit := []string{
		"bc1qpux3z758ulsxg69eptaakukraanqwtdxe5yy4c",
		"bc1qytr8s7skf86x7ccl6wctal9hqrartu085r9mr5",
		"bc1qh6uplta545yzxe56ku3eehzhs6l5j25vvy2u4w",
	}
	for i, want := range wantSegwit {
		addr, err := w.NewReceiveAddress(SegwitPurpose)
		require.NoError(t, err)
		require.Equal(t, want, addr, i)

		purpose, branch, index, ok := w.IsOurAddress(addr)
		require.True(t, ok)
		require.Equal(t, uint32(SegwitPurpose), purpose)
		require.Equal(t, uint32(ExternalBranch), branch)
		require.Equal(t, uint32(i), index)
	}

	wantLegacy := []string{
		"1NQpH6Nf8QtR2HphLRcvuVqfhXBXsiWn8r",
		"16qTdEma9YHFPCZ8sB51nNrbfVg8Nkzy6P",
		"1JbFSv4FnJ6ykAmAAMSsfb17xPDRxa3mcd",
	}
	for i, want := range wantLegacy {
		addr, err := w.NewReceiveAddress(LegacyPurpose)
		require.NoError(t, err)
		require.Equal(t, want, addr, i)
	}

	// AddressRange re-derives the same window.
	addrs, err := w.AddressRange(SegwitPurpose, ExternalBranch, 0, 3)
	require.NoError(t, err)
	require.Equal(t, wantSegwit, addrs)

	// Change addresses live on the internal branch and differ.
	change, err := w.NewChangeAddress(SegwitPurpose)
	require.NoError(t, err)
	require.NotContains(t, wantSegwit, change)
	_, branch, _, ok := w.IsOurAddress(change)
	require.True(t, ok)
	require.Equal(t, uint32(InternalBranch), branch)

	_, _, _, ok = w.IsOurAddress("bc1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq")
	require.False(t, ok)

	_, err = w.NewReceiveAddress(49)
	require.ErrorIs(t, err, ErrUnknownPurpose)
	_, err = w.AddressAt(SegwitPurpose, 2, 0)
	require.ErrorIs(t, err, ErrUnknownBranch)
}

// TestGapLimit checks that the gap window stays derived ahead of the
// handed-out cursor.
func TestGapLimit(t *testing.T) {
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	w, err := New(master, 5)
	require.NoError(t, err)

	// The initial window is derived on both branches of both accounts.
	require.Len(t, w.Addresses(), 2*2*5)

	// Handing one out keeps five derived past the cursor.
	addr, err := w.NewReceiveAddress(SegwitPurpose)
	require.NoError(t, err)
	ahead, err := w.AddressAt(SegwitPurpose, ExternalBranch, 5)
	require.NoError(t, err)
	require.NotEqual(t, addr, ahead)
	_, _, index, ok := w.IsOurAddress(ahead)
	require.True(t, ok)
	require.Equal(t, uint32(5), index)
}

// TestWalletExportRoundTrip checks that the JSON export restores to a
// watch-only wallet with identical addresses and cursors.
func TestWalletExportRoundTrip(t *testing.T) {
	w := testWallet(t)

	first, err := w.NewReceiveAddress(SegwitPurpose)
	require.NoError(t, err)
	_, err = w.NewChangeAddress(LegacyPurpose)
	require.NoError(t, err)

	data, err := json.Marshal(w)
	require.NoError(t, err)

	// Only public account keys are exported.
	var export walletExport
	require.NoError(t, json.Unmarshal(data, &export))
	require.Len(t, export.Accounts, 2)
	for _, acct := range export.Accounts {
		require.True(t, strings.HasPrefix(acct.ExtendedKey, "xpub") ||
			strings.HasPrefix(acct.ExtendedKey, "zpub"), acct.ExtendedKey)
	}

	var restored Wallet
	require.NoError(t, json.Unmarshal(data, &restored))
	require.True(t, restored.IsWatchOnly())
	require.Equal(t, w.Purposes(), restored.Purposes())
	require.Equal(t, w.Addresses(), restored.Addresses())

	// The handed-out cursor survives: the next address continues the
	// sequence instead of repeating the first one.
	next, err := restored.NewReceiveAddress(SegwitPurpose)
	require.NoError(t, err)
	require.NotEqual(t, first, next)
	require.Equal(t, "bc1qytr8s7skf86x7ccl6wctal9hqrartu085r9mr5", next)

	// Watch-only wallets refuse private serialization.
	_, err = restored.AccountExtendedKey(SegwitPurpose, true)
	require.ErrorIs(t, err, hdkeychain.ErrWatchOnly)
}

// TestWalletUnmarshalRejectsTampering checks that a foreign address smuggled
// into an export fails the re-derivation check.
func TestWalletUnmarshalRejectsTampering(t *testing.T) {
	w := testWallet(t)
	data, err := json.Marshal(w)
	require.NoError(t, err)

	tampered := strings.Replace(string(data),
		"bc1qpux3z758ulsxg69eptaakukraanqwtdxe5yy4c",
		"bc1qh6uplta545yzxe56ku3eehzhs6l5j25vvy2u4w", 1)
	require.NotEqual(t, string(data), tampered)

	var restored Wallet
	err = json.Unmarshal([]byte(tampered), &restored)
	require.Error(t, err)
}

// TestLegacyOnlyNetwork checks that networks without segwit extended keys
// get only the BIP44 account.
func TestLegacyOnlyNetwork(t *testing.T) {
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	master, err := hdkeychain.NewMaster(seed, &chaincfg.DogecoinParams)
	require.NoError(t, err)

	w, err := New(master, 0)
	require.NoError(t, err)
	require.Equal(t, []uint32{LegacyPurpose}, w.Purposes())

	addr, err := w.NewReceiveAddress(LegacyPurpose)
	require.NoError(t, err)
	require.Equal(t, byte('D'), addr[0])
}
