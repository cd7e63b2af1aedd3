// Copyright (c) 2023-2024 The hdvault developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	flags "github.com/jessevdk/go-flags"

	"github.com/hdvault/hdvault/chaincfg"
	"github.com/hdvault/hdvault/hdkeychain"
	"github.com/hdvault/hdvault/wallet"
)

var log = btclog.NewBackend(os.Stderr).Logger("HDVT")

// options defines the command line flags.  Exactly one key source must be
// given: --generate, --mnemonic, --brainwallet, --seed, or --key.
type options struct {
	Network     string `short:"n" long:"network" default:"mainnet" description:"Network the keys and addresses are for (mainnet, testnet3, regtest, litecoin, dogecoin)"`
	Generate    bool   `long:"generate" description:"Generate a new wallet from system entropy and print its mnemonic"`
	Strength    int    `long:"strength" default:"256" description:"Entropy bits for --generate; a multiple of 32 between 128 and 256"`
	Mnemonic    string `long:"mnemonic" description:"BIP39 mnemonic phrase to build the master key from"`
	Brainwallet string `long:"brainwallet" description:"Brainwallet password to build the master key from"`
	Seed        string `long:"seed" description:"Hex encoded seed (16 to 64 bytes) to build the master key from"`
	Key         string `long:"key" description:"Serialized extended key to inspect (base58, hex, or raw forms)"`
	Passphrase  string `long:"passphrase" description:"BIP39 passphrase used with --generate and --mnemonic"`
	Path        string `long:"path" default:"m" description:"Derivation path from the master, e.g. m/84'/0'/0'/0/0"`
	Segwit      bool   `long:"segwit" description:"Serialize extended keys with the network's SLIP-0132 magics (zprv/zpub)"`
	Private     bool   `long:"private" description:"Also print private material (extended private key, WIF, mnemonic)"`
	Wallet      bool   `long:"wallet" description:"Print the default account wallet as watch-only JSON"`
	Addresses   uint32 `long:"addresses" default:"5" description:"Receive addresses to print per account with --wallet"`
}

func masterNode(opts *options, net *chaincfg.Params) (*hdkeychain.HDNode, error) {
	sources := 0
	for _, set := range []bool{
		opts.Generate, opts.Mnemonic != "", opts.Brainwallet != "",
		opts.Seed != "", opts.Key != "",
	} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, fmt.Errorf("exactly one of --generate, --mnemonic, " +
			"--brainwallet, --seed, or --key is required")
	}

	switch {
	case opts.Generate:
		return hdkeychain.NewFromRandom(opts.Strength, opts.Passphrase, net)
	case opts.Mnemonic != "":
		return hdkeychain.NewFromMnemonic(opts.Mnemonic, opts.Passphrase, net)
	case opts.Brainwallet != "":
		return hdkeychain.NewFromBrainwallet(opts.Brainwallet, net)
	case opts.Seed != "":
		seed, err := hex.DecodeString(opts.Seed)
		if err != nil {
			return nil, fmt.Errorf("invalid seed hex: %v", err)
		}
		return hdkeychain.NewMaster(seed, net)
	default:
		return hdkeychain.DeserializeString(opts.Key, net)
	}
}

func printNode(node *hdkeychain.HDNode, opts *options) error {
	fmt.Printf("path: %s\n", opts.Path)
	fmt.Printf("depth: %d\n", node.Depth())
	fmt.Printf("fingerprint: %x\n", node.Fingerprint())
	fmt.Printf("child number: %d\n", node.ChildNumber())

	xpub, err := node.SerializeB58(false, opts.Segwit)
	if err != nil {
		return err
	}
	fmt.Printf("extended public key: %s\n", xpub)

	addr, err := node.Address(0)
	if err != nil {
		return err
	}
	fmt.Printf("address: %s\n", addr)

	if !opts.Private {
		return nil
	}
	if !node.IsPrivate() {
		log.Warnf("--private given but the key is watch-only")
		return nil
	}

	xprv, err := node.SerializeB58(true, opts.Segwit)
	if err != nil {
		return err
	}
	fmt.Printf("extended private key: %s\n", xprv)

	wif, err := node.WIF(true)
	if err != nil {
		return err
	}
	fmt.Printf("WIF: %s\n", wif)

	if mnemonic := node.Mnemonic(); mnemonic != "" {
		fmt.Printf("mnemonic: %s\n", mnemonic)
	}
	return nil
}

func printWallet(master *hdkeychain.HDNode, opts *options) error {
	w, err := wallet.New(master, 0)
	if err != nil {
		return err
	}

	for _, purpose := range w.Purposes() {
		xpub, err := w.AccountExtendedKey(purpose, false)
		if err != nil {
			return err
		}
		fmt.Printf("account %d': %s\n", purpose, xpub)
		for i := uint32(0); i < opts.Addresses; i++ {
			addr, err := w.NewReceiveAddress(purpose)
			if err != nil {
				return err
			}
			fmt.Printf("  %d: %s\n", i, addr)
		}
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", data)
	return nil
}

func realMain() error {
	opts := &options{}
	if _, err := flags.Parse(opts); err != nil {
		// The library already printed the message (or the help text).
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil
		}
		os.Exit(1)
	}

	net, err := chaincfg.ParamsForName(opts.Network)
	if err != nil {
		return fmt.Errorf("unknown network %q", opts.Network)
	}

	master, err := masterNode(opts, net)
	if err != nil {
		return err
	}

	node, err := master.DerivePath(opts.Path)
	if err != nil {
		return fmt.Errorf("failed to derive %q: %w", opts.Path, err)
	}
	if err := printNode(node, opts); err != nil {
		return err
	}

	if opts.Wallet {
		if opts.Path != "m" && opts.Path != "M" {
			log.Infof("--wallet derives its own account paths; --path is " +
				"ignored for the wallet dump")
		}
		return printWallet(master, opts)
	}
	return nil
}

func main() {
	if err := realMain(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
