// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"sort"

	"github.com/slide-computer/slided/account"
	"github.com/slide-computer/slided/blockstore"
	"github.com/slide-computer/slided/merkle"
	"github.com/slide-computer/slided/transaction"
)

// Standard - one supported capability tag
type Standard struct {
	Name string `cbor:"name" json:"name"`
	Url  string `cbor:"url" json:"url"`
}

const standardsUrl = "https://github.com/slide-computer/slide-token"

// Name - the registry name
func (l *Ledger) Name() string {
	l.RLock()
	defer l.RUnlock()
	return l.name
}

// Symbol - the registry symbol
func (l *Ledger) Symbol() string {
	l.RLock()
	defer l.RUnlock()
	return l.symbol
}

// Metadata - the registry metadata map
func (l *Ledger) Metadata() map[string]transaction.Value {
	l.RLock()
	defer l.RUnlock()

	metadata := make(map[string]transaction.Value, len(l.metadata))
	for key, value := range l.metadata {
		metadata[key] = value
	}
	return metadata
}

// TotalSupply - count of tokens in circulation
//
// tokens owned by the minter account are burned or pre-mint and do
// not count
func (l *Ledger) TotalSupply() uint64 {
	l.RLock()
	defer l.RUnlock()
	return l.totalSupply()
}

// BalanceOf - count of tokens owned by an account
func (l *Ledger) BalanceOf(owner account.Account) uint64 {
	l.RLock()
	defer l.RUnlock()

	n := uint64(0)
	for _, token := range l.tokens {
		if token.account.Equal(owner) {
			n += 1
		}
	}
	return n
}

// OwnerOf - current owner of a token
func (l *Ledger) OwnerOf(tokenId uint64) (account.Account, bool) {
	l.RLock()
	defer l.RUnlock()

	token, ok := l.tokens[tokenId]
	if !ok {
		return account.Account{}, false
	}
	return token.account, true
}

// Tokens - one page of circulating token ids, ascending
//
// pages beyond the end are empty results, not errors
func (l *Ledger) Tokens(page uint64) []uint64 {
	l.RLock()
	defer l.RUnlock()

	return pageOf(l.tokens, page, func(token *tokenState) bool {
		return !token.account.Equal(l.registry)
	})
}

// TokensOf - one page of an account's token ids, ascending
func (l *Ledger) TokensOf(owner account.Account, page uint64) []uint64 {
	l.RLock()
	defer l.RUnlock()

	return pageOf(l.tokens, page, func(token *tokenState) bool {
		return token.account.Equal(owner)
	})
}

func pageOf(tokens map[uint64]*tokenState, page uint64, match func(*tokenState) bool) []uint64 {
	ids := make([]uint64, 0, len(tokens))
	for tokenId, token := range tokens {
		if match(token) {
			ids = append(ids, tokenId)
		}
	}
	sort.Slice(ids, func(i int, j int) bool {
		return ids[i] < ids[j]
	})

	start := page * listPageSize
	if start >= uint64(len(ids)) {
		return []uint64{}
	}
	end := start + listPageSize
	if end > uint64(len(ids)) {
		end = uint64(len(ids))
	}
	return ids[start:end]
}

// GetApproved - the delegates of one token, sorted by identity bytes
//
// an unknown token has no delegates
func (l *Ledger) GetApproved(tokenId uint64) []account.Identity {
	l.RLock()
	defer l.RUnlock()

	token, ok := l.tokens[tokenId]
	if !ok {
		return []account.Identity{}
	}
	approved := make([]account.Identity, 0, len(token.approved))
	for _, id := range token.approved {
		approved = append(approved, id)
	}
	sort.Slice(approved, func(i int, j int) bool {
		return string(approved[i]) < string(approved[j])
	})
	return approved
}

// GetTx - one committed event; nil for unknown ids
func (l *Ledger) GetTx(txId uint64) (*transaction.Event, error) {
	return l.store.ReadTx(txId)
}

// GetBlock - a block of events, or a pointer when paged out
func (l *Ledger) GetBlock(blockId uint64) ([]transaction.Event, *blockstore.Pointer, error) {
	return l.store.ReadBlock(blockId)
}

// TxTotal - committed transaction count
func (l *Ledger) TxTotal() uint64 {
	return l.store.TxTotal()
}

// BlockSize - events per block
func (l *Ledger) BlockSize() uint64 {
	return l.store.BlockSize()
}

// SupportedStandards - the fixed capability list
func (l *Ledger) SupportedStandards() []Standard {
	return []Standard{
		{Name: "SLD-1", Url: standardsUrl},
		{Name: "SLD-2", Url: standardsUrl},
		{Name: "SLD-3", Url: standardsUrl},
		{Name: "SLD-4", Url: standardsUrl},
	}
}

// RootHash - the current certification root
func (l *Ledger) RootHash() merkle.Digest {
	l.RLock()
	defer l.RUnlock()
	return l.tree.RootHash()
}

// Witness - an inclusion or absence proof for a certified key
func (l *Ledger) Witness(key string) merkle.Witness {
	l.RLock()
	defer l.RUnlock()
	return l.tree.Witness(key)
}
