// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package merkle

// the tree is sparse: a key's position is the digest of the key, one
// level per bit, and empty subtrees collapse to precomputed digests
const treeDepth = 8 * DigestLength

// zeroDigests[d] is the digest of an empty subtree rooted at depth d;
// depth treeDepth is the leaf level and its zero digest marks absence
var zeroDigests [treeDepth + 1]Digest

func init() {
	for d := treeDepth - 1; d >= 0; d -= 1 {
		zeroDigests[d] = combine(zeroDigests[d+1], zeroDigests[d+1])
	}
}

// Tree - a sparse authenticated map from logical keys to content hashes
type Tree struct {
	root     *node
	contents map[string]Digest
}

type node struct {
	left   *node
	right  *node
	digest Digest
}

// New - create an empty tree
func New() *Tree {
	return &Tree{
		contents: make(map[string]Digest),
	}
}

// Update - set the content hash for a key and rehash its path
func (tree *Tree) Update(key string, content Digest) {
	if content.IsEmpty() {
		tree.Delete(key)
		return
	}
	tree.contents[key] = content
	path := NewDigest([]byte(key))
	tree.root = update(tree.root, 0, path, content)
}

// Delete - remove a key; its leaf reverts to the absence digest
func (tree *Tree) Delete(key string) {
	if _, ok := tree.contents[key]; !ok {
		return
	}
	delete(tree.contents, key)
	path := NewDigest([]byte(key))
	tree.root = update(tree.root, 0, path, Digest{})
}

// Get - fetch the content hash stored for a key
func (tree *Tree) Get(key string) (Digest, bool) {
	digest, ok := tree.contents[key]
	return digest, ok
}

// RootHash - the digest certifying the whole structure
func (tree *Tree) RootHash() Digest {
	return childDigest(tree.root, 0)
}

// Size - number of keys present
func (tree *Tree) Size() int {
	return len(tree.contents)
}

// Witness - proof that a key holds a content hash under some root
//
// a zero content digest is a valid absence proof
type Witness struct {
	Key     string
	Content Digest
	Path    [treeDepth]Digest // sibling digests, root side first
}

// Witness - produce a proof for a key, present or absent
func (tree *Tree) Witness(key string) Witness {
	w := Witness{
		Key:     key,
		Content: tree.contents[key], // zero digest when absent
	}
	path := NewDigest([]byte(key))
	n := tree.root
	for d := 0; d < treeDepth; d += 1 {
		if nil == n {
			w.Path[d] = zeroDigests[d+1]
			continue
		}
		if isBitSet(path, d) {
			w.Path[d] = childDigest(n.left, d+1)
			n = n.right
		} else {
			w.Path[d] = childDigest(n.right, d+1)
			n = n.left
		}
	}
	return w
}

// Verify - recompute the root from a witness
func (w Witness) Verify(root Digest) bool {
	path := NewDigest([]byte(w.Key))
	digest := w.Content
	for d := treeDepth - 1; d >= 0; d -= 1 {
		if isBitSet(path, d) {
			digest = combine(w.Path[d], digest)
		} else {
			digest = combine(digest, w.Path[d])
		}
	}
	return digest == root
}

// IsAbsence - true when the witness proves the key is absent
func (w Witness) IsAbsence() bool {
	return w.Content.IsEmpty()
}

// walk the key path rehashing every node from the leaf up
func update(n *node, depth int, path Digest, content Digest) *node {
	if nil == n {
		n = &node{}
	}
	if treeDepth == depth {
		n.digest = content
		return n
	}
	if isBitSet(path, depth) {
		n.right = update(n.right, depth+1, path, content)
	} else {
		n.left = update(n.left, depth+1, path, content)
	}
	n.digest = combine(childDigest(n.left, depth+1), childDigest(n.right, depth+1))
	return n
}

func childDigest(n *node, depth int) Digest {
	if nil == n {
		return zeroDigests[depth]
	}
	return n.digest
}

func combine(left Digest, right Digest) Digest {
	buffer := make([]byte, 0, 2*DigestLength)
	buffer = append(buffer, left[:]...)
	buffer = append(buffer, right[:]...)
	return NewDigest(buffer)
}

// position 0 is the most significant bit of the first byte
func isBitSet(digest Digest, position int) bool {
	return 0 != digest[position/8]&(1<<uint(7-position%8))
}
