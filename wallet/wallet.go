// Copyright (c) 2023-2024 The hdvault developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/hdvault/hdvault/chaincfg"
	"github.com/hdvault/hdvault/hdkeychain"
)

const (
	// DefaultGapLimit is the number of addresses derived ahead of the
	// last handed-out one, per branch.  Twenty is the figure scanners
	// conventionally probe before declaring an account exhausted.
	DefaultGapLimit = 20

	// LegacyPurpose is the BIP44 purpose field for P2PKH accounts.
	LegacyPurpose = 44

	// SegwitPurpose is the BIP84 purpose field for P2WPKH accounts.
	SegwitPurpose = 84

	// ExternalBranch holds receive addresses, InternalBranch change.
	ExternalBranch = 0
	InternalBranch = 1
)

var (
	// ErrUnknownPurpose describes an error in which the requested
	// account purpose has not been derived on this wallet.
	ErrUnknownPurpose = errors.New("no account with this purpose")

	// ErrUnknownBranch describes an error in which a branch other than
	// ExternalBranch or InternalBranch was requested.
	ErrUnknownBranch = errors.New("branch must be external (0) or internal (1)")
)

// Account is one purpose'd subtree of the wallet, rooted at
// m/purpose'/coin'/0' per BIP44 and BIP84.  The branch nodes are kept
// pre-derived since every address generation starts from them.
type Account struct {
	purpose  uint32
	node     *hdkeychain.HDNode
	external *hdkeychain.HDNode
	internal *hdkeychain.HDNode

	// nextIndex tracks the next unhanded address per branch.
	nextIndex [2]uint32
}

// addrSite records where in the tree an address lives.
type addrSite struct {
	purpose uint32
	branch  uint32
	index   uint32
}

// Wallet manages the standard account layout over a master node: a legacy
// P2PKH account at m/44'/coin'/0' and, on networks with segwit extended
// keys, a native segwit account at m/84'/coin'/0'.  All address handouts
// are recorded so membership checks never miss a derived address.
//
// A wallet built from a private master derives everything privately; one
// restored from its JSON export is watch-only and keeps generating
// addresses through public derivation.
type Wallet struct {
	mtx sync.RWMutex

	net      *chaincfg.Params
	master   *hdkeychain.HDNode
	accounts map[uint32]*Account
	addrs    map[string]addrSite
	gapLimit uint32
}

// New creates a wallet from a master node, deriving the default accounts and
// pre-deriving gapLimit receive addresses on each.  A gapLimit of zero means
// DefaultGapLimit.
func New(master *hdkeychain.HDNode, gapLimit uint32) (*Wallet, error) {
	if gapLimit == 0 {
		gapLimit = DefaultGapLimit
	}

	w := &Wallet{
		net:      master.Network(),
		master:   master,
		accounts: make(map[uint32]*Account),
		addrs:    make(map[string]addrSite),
		gapLimit: gapLimit,
	}

	purposes := []uint32{LegacyPurpose}
	if w.net.HasSegwitHDKeyIDs() {
		purposes = append(purposes, SegwitPurpose)
	}
	for _, purpose := range purposes {
		path := fmt.Sprintf("m/%d'/%d'/0'", purpose, w.net.HDCoinType)
		node, err := master.DerivePath(path)
		if err != nil {
			return nil, err
		}
		if err := w.addAccount(purpose, node); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// addAccount derives the branch nodes for an account node and fills the gap
// limit on both branches.  The caller holds the lock (or is constructing).
func (w *Wallet) addAccount(purpose uint32, node *hdkeychain.HDNode) error {
	account, err := w.newAccount(purpose, node)
	if err != nil {
		return err
	}

	for branch := uint32(ExternalBranch); branch <= InternalBranch; branch++ {
		for i := uint32(0); i < w.gapLimit; i++ {
			if _, err := w.watchAddress(account, branch, i); err != nil {
				return err
			}
		}
	}
	return nil
}

// newAccount derives the branch nodes for an account node and registers the
// account without deriving any addresses.
func (w *Wallet) newAccount(purpose uint32, node *hdkeychain.HDNode) (*Account, error) {
	external, err := node.Derive(ExternalBranch, false)
	if err != nil {
		return nil, err
	}
	internal, err := node.Derive(InternalBranch, false)
	if err != nil {
		return nil, err
	}

	account := &Account{
		purpose:  purpose,
		node:     node,
		external: external,
		internal: internal,
	}
	w.accounts[purpose] = account
	return account, nil
}

// watchAddress derives the address at the given branch and index, records it
// in the membership map, and returns it.
func (w *Wallet) watchAddress(account *Account, branch, index uint32) (string, error) {
	branchNode := account.external
	if branch == InternalBranch {
		branchNode = account.internal
	}

	child, err := branchNode.Derive(index, false)
	if err != nil {
		return "", err
	}

	var addr string
	if account.purpose == SegwitPurpose {
		addr, err = child.PubKey().WitnessAddress(w.net, 0)
		if err != nil {
			return "", err
		}
	} else {
		addr = child.PubKey().AddressPubKeyHash(w.net, true)
	}

	w.addrs[addr] = addrSite{purpose: account.purpose, branch: branch, index: index}
	return addr, nil
}

// account returns the account for a purpose.  The caller holds the lock.
func (w *Wallet) account(purpose uint32) (*Account, error) {
	account, ok := w.accounts[purpose]
	if !ok {
		return nil, ErrUnknownPurpose
	}
	return account, nil
}

// Network returns the network parameters the wallet was built for.
func (w *Wallet) Network() *chaincfg.Params {
	return w.net
}

// IsWatchOnly returns whether the wallet can only observe, not spend.
func (w *Wallet) IsWatchOnly() bool {
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	return w.master == nil || !w.master.IsPrivate()
}

// Purposes returns the derived account purposes in ascending order.
func (w *Wallet) Purposes() []uint32 {
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	purposes := maps.Keys(w.accounts)
	slices.Sort(purposes)
	return purposes
}

// NewReceiveAddress hands out the next unused external address of the given
// account and extends the derived window so the gap limit stays ahead of it.
func (w *Wallet) NewReceiveAddress(purpose uint32) (string, error) {
	return w.nextAddress(purpose, ExternalBranch)
}

// NewChangeAddress hands out the next unused internal address of the given
// account.
func (w *Wallet) NewChangeAddress(purpose uint32) (string, error) {
	return w.nextAddress(purpose, InternalBranch)
}

func (w *Wallet) nextAddress(purpose, branch uint32) (string, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	account, err := w.account(purpose)
	if err != nil {
		return "", err
	}

	index := account.nextIndex[branch]
	addr, err := w.watchAddress(account, branch, index)
	if err != nil {
		return "", err
	}
	account.nextIndex[branch] = index + 1

	// Keep gapLimit addresses derived past the handed-out window.
	if _, err := w.watchAddress(account, branch, index+w.gapLimit); err != nil {
		return "", err
	}
	return addr, nil
}

// AddressAt returns the address at an explicit branch and index without
// moving the next-address cursor.  The address is still recorded for
// membership checks.
func (w *Wallet) AddressAt(purpose, branch, index uint32) (string, error) {
	if branch > InternalBranch {
		return "", ErrUnknownBranch
	}

	w.mtx.Lock()
	defer w.mtx.Unlock()

	account, err := w.account(purpose)
	if err != nil {
		return "", err
	}
	return w.watchAddress(account, branch, index)
}

// AddressRange returns count consecutive addresses of a branch starting at
// the given index.
func (w *Wallet) AddressRange(purpose, branch, start, count uint32) ([]string, error) {
	addrs := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		addr, err := w.AddressAt(purpose, branch, start+i)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// IsOurAddress returns whether the address has been derived by this wallet,
// along with its location in the tree when it has.
func (w *Wallet) IsOurAddress(addr string) (uint32, uint32, uint32, bool) {
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	site, ok := w.addrs[addr]
	return site.purpose, site.branch, site.index, ok
}

// Addresses returns every derived address in lexicographic order.
func (w *Wallet) Addresses() []string {
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	addrs := maps.Keys(w.addrs)
	slices.Sort(addrs)
	return addrs
}

// AccountExtendedKey returns the base58 extended key of an account node.
// Segwit accounts serialize with the network's SLIP-0132 magics so they are
// recognizable (zpub rather than xpub on mainnet).  Private serialization of
// a watch-only wallet fails with hdkeychain.ErrWatchOnly.
func (w *Wallet) AccountExtendedKey(purpose uint32, private bool) (string, error) {
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	account, err := w.account(purpose)
	if err != nil {
		return "", err
	}
	return account.node.SerializeB58(private, purpose == SegwitPurpose)
}

// accountExport is the JSON shape of one account: its extended public key
// and the next-address cursors.
type accountExport struct {
	Purpose      uint32 `json:"purpose"`
	ExtendedKey  string `json:"extendedkey"`
	NextExternal uint32 `json:"nextexternal"`
	NextInternal uint32 `json:"nextinternal"`
}

// siteExport records one derived address together with where in the tree it
// lives, so a restore can re-derive and verify it.
type siteExport struct {
	Address string `json:"address"`
	Purpose uint32 `json:"purpose"`
	Branch  uint32 `json:"branch"`
	Index   uint32 `json:"index"`
}

// walletExport is the JSON shape of a wallet.  Only public material is
// exported: account extended public keys, never the master or any private
// key.  A wallet restored from it is watch-only.
type walletExport struct {
	Net       string          `json:"net"`
	Accounts  []accountExport `json:"accounts"`
	Addresses []siteExport    `json:"addresses"`
	GapLimit  uint32          `json:"gaplimit"`
}

// MarshalJSON exports the wallet's watch-only state.
func (w *Wallet) MarshalJSON() ([]byte, error) {
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	accounts := make([]accountExport, 0, len(w.accounts))
	purposes := maps.Keys(w.accounts)
	slices.Sort(purposes)
	for _, purpose := range purposes {
		account := w.accounts[purpose]
		xpub, err := account.node.SerializeB58(false, purpose == SegwitPurpose)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, accountExport{
			Purpose:      purpose,
			ExtendedKey:  xpub,
			NextExternal: account.nextIndex[ExternalBranch],
			NextInternal: account.nextIndex[InternalBranch],
		})
	}

	sites := make([]siteExport, 0, len(w.addrs))
	for addr, site := range w.addrs {
		sites = append(sites, siteExport{
			Address: addr,
			Purpose: site.purpose,
			Branch:  site.branch,
			Index:   site.index,
		})
	}
	slices.SortFunc(sites, func(a, b siteExport) bool {
		return a.Address < b.Address
	})

	return json.Marshal(walletExport{
		Net:       w.net.Name,
		Accounts:  accounts,
		Addresses: sites,
		GapLimit:  w.gapLimit,
	})
}

// UnmarshalJSON restores a watch-only wallet from its JSON export.  Account
// nodes are re-parsed from their extended public keys and every recorded
// address is re-derived from its site rather than trusted, so a tampered
// export cannot inject foreign addresses.
func (w *Wallet) UnmarshalJSON(data []byte) error {
	var export walletExport
	if err := json.Unmarshal(data, &export); err != nil {
		return err
	}

	net, err := chaincfg.ParamsForName(export.Net)
	if err != nil {
		return err
	}

	w.mtx.Lock()
	defer w.mtx.Unlock()

	w.net = net
	w.master = nil
	w.accounts = make(map[uint32]*Account, len(export.Accounts))
	w.addrs = make(map[string]addrSite)
	w.gapLimit = export.GapLimit
	if w.gapLimit == 0 {
		w.gapLimit = DefaultGapLimit
	}

	for _, acct := range export.Accounts {
		node, err := hdkeychain.DeserializeString(acct.ExtendedKey, net)
		if err != nil {
			return fmt.Errorf("failed to parse account key for purpose %d: %w",
				acct.Purpose, err)
		}
		account, err := w.newAccount(acct.Purpose, node)
		if err != nil {
			return err
		}
		account.nextIndex[ExternalBranch] = acct.NextExternal
		account.nextIndex[InternalBranch] = acct.NextInternal
	}

	for _, site := range export.Addresses {
		if site.Branch > InternalBranch {
			return ErrUnknownBranch
		}
		account, ok := w.accounts[site.Purpose]
		if !ok {
			return fmt.Errorf("address %s references unknown purpose %d",
				site.Address, site.Purpose)
		}
		derived, err := w.watchAddress(account, site.Branch, site.Index)
		if err != nil {
			return err
		}
		if derived != site.Address {
			return fmt.Errorf("exported address %s does not belong to "+
				"this wallet", site.Address)
		}
	}
	return nil
}
