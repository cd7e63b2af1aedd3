// Copyright (c) 2023-2024 The hdvault developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package hdkeychain provides an API for BIP32 hierarchical deterministic
extended keys.

# Overview

A BIP32 tree is made up of nodes.  A private node contains both a private
and a public key, while a watch-only node contains only a public key.
Private nodes can derive both hardened (prime) and non-hardened children;
watch-only nodes can only derive non-hardened children, which is what makes
them safe to place on insecure machines that need to generate deposit
addresses.

Master nodes are produced from a seed (NewMaster), a BIP39 mnemonic
(NewFromMnemonic), a brainwallet password (NewFromBrainwallet), or fresh
system entropy (NewFromRandom).  Children are derived one step at a time
with Child or Derive, or along a textual path such as "m/44'/0'/0'/0/5"
with DerivePath.

Nodes serialize to the standard 78-byte extended key format and its
base58check text form (xprv/xpub and, for networks that define SLIP-0132
magics, zprv/zpub and friends), and parse back with Deserialize.

# A word of warning

BIP32 has a well-known property that looks innocuous: given a parent
extended *public* key and any non-hardened *private* child, the parent
private key can be recovered.  CrackPrivateKey implements the recovery to
make the risk concrete.  Never reveal a non-hardened child private key
alongside the parent extended public key.
*/
package hdkeychain
