// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package merkle_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slide-computer/slided/merkle"
)

func TestEmptyTreeRoot(t *testing.T) {
	first := merkle.New()
	second := merkle.New()
	assert.Equal(t, first.RootHash(), second.RootHash(), "empty roots must agree")
}

func TestRootChangesOnUpdate(t *testing.T) {
	tree := merkle.New()
	empty := tree.RootHash()

	tree.Update("/total_supply", merkle.NewDigest([]byte("0")))
	one := tree.RootHash()
	assert.NotEqual(t, empty, one, "root must change after insert")

	tree.Update("/total_supply", merkle.NewDigest([]byte("1")))
	two := tree.RootHash()
	assert.NotEqual(t, one, two, "root must change after update")

	tree.Delete("/total_supply")
	assert.Equal(t, empty, tree.RootHash(), "root must revert after delete")
}

func TestRootIsOrderIndependent(t *testing.T) {
	forward := merkle.New()
	backward := merkle.New()
	for i := 0; i < 50; i += 1 {
		key := fmt.Sprintf("/token/%d", i)
		forward.Update(key, merkle.NewDigest([]byte(key)))
	}
	for i := 49; i >= 0; i -= 1 {
		key := fmt.Sprintf("/token/%d", i)
		backward.Update(key, merkle.NewDigest([]byte(key)))
	}
	assert.Equal(t, forward.RootHash(), backward.RootHash(), "insertion order must not matter")
}

func TestInclusionWitness(t *testing.T) {
	tree := merkle.New()
	for i := 0; i < 20; i += 1 {
		key := fmt.Sprintf("/token/%d", i)
		tree.Update(key, merkle.NewDigest([]byte(key)))
	}
	root := tree.RootHash()

	w := tree.Witness("/token/7")
	assert.False(t, w.IsAbsence(), "key is present")
	assert.True(t, w.Verify(root), "inclusion witness must verify")

	// a tampered root must not verify
	tampered := root
	tampered[0] ^= 1
	assert.False(t, w.Verify(tampered), "tampered root must fail")

	// a tampered content must not verify
	w.Content[0] ^= 1
	assert.False(t, w.Verify(root), "tampered content must fail")
}

func TestAbsenceWitness(t *testing.T) {
	tree := merkle.New()
	tree.Update("/name", merkle.NewDigest([]byte("\"Registry\"")))
	tree.Update("/symbol", merkle.NewDigest([]byte("\"REG\"")))
	root := tree.RootHash()

	w := tree.Witness("/token/12345")
	assert.True(t, w.IsAbsence(), "key is absent")
	assert.True(t, w.Verify(root), "absence witness must verify")

	// the same key becomes present later; the old proof dies with the root
	tree.Update("/token/12345", merkle.NewDigest([]byte("x")))
	assert.False(t, w.Verify(tree.RootHash()), "stale absence proof must fail")
}

func TestGet(t *testing.T) {
	tree := merkle.New()
	digest := merkle.NewDigest([]byte("content"))
	tree.Update("/k", digest)

	actual, ok := tree.Get("/k")
	assert.True(t, ok, "key must be present")
	assert.Equal(t, digest, actual, "wrong content digest")

	_, ok = tree.Get("/missing")
	assert.False(t, ok, "missing key")
	assert.Equal(t, 1, tree.Size(), "wrong size")
}
