package pki

import (
	"fmt"

	"github.com/google/btree"
	"github.com/rpki-tools/rescert/validator/lib"
)

const btreeDegree = 32

// AuthNode wraps one accepted CA certificate in the trust index. The
// parent pointer is a non-owning back-reference used for chain walks;
// the index owns every node.
type AuthNode struct {
	Cert   *librpki.ResourceCert
	Parent *AuthNode
}

func (a *AuthNode) Less(than btree.Item) bool {
	return a.Cert.SKI < than.(*AuthNode).Cert.SKI
}

// AuthTree is the issuer lookup index, ordered by subject key
// identifier. It has no internal locking: one logical owner performs
// all inserts and lookups.
type AuthTree struct {
	tree *btree.BTree
}

func NewAuthTree() *AuthTree {
	return &AuthTree{
		tree: btree.New(btreeDegree),
	}
}

// Insert adds a certificate keyed by its SKI. Two accepted certificates
// may never share a subject key identifier; if they do the index is
// corrupt and Insert panics with an *IntegrityError.
func (t *AuthTree) Insert(cert *librpki.ResourceCert, parent *AuthNode) *AuthNode {
	node := &AuthNode{
		Cert:   cert,
		Parent: parent,
	}
	if prev := t.tree.ReplaceOrInsert(node); prev != nil {
		panic(&IntegrityError{SKI: cert.SKI})
	}
	return node
}

// FindByKeyID resolves a subject key identifier (an issuer's SKI, a
// child's AKI) to its node, or nil.
func (t *AuthTree) FindByKeyID(ski string) *AuthNode {
	item := t.tree.Get(&AuthNode{Cert: &librpki.ResourceCert{SKI: ski}})
	if item == nil {
		return nil
	}
	return item.(*AuthNode)
}

func (t *AuthTree) Len() int {
	return t.tree.Len()
}

// Ascend visits every node in SKI order until the callback returns
// false.
func (t *AuthTree) Ascend(fn func(*AuthNode) bool) {
	t.tree.Ascend(func(item btree.Item) bool {
		return fn(item.(*AuthNode))
	})
}

// MaxRouterKeySpan caps how many registry entries a single AS range may
// expand into. The RFCs put no bound here; without one a certificate
// declaring a huge range forces unbounded entry creation.
const MaxRouterKeySpan = 65536

// BRK is one BGPsec Router Key registry entry: an AS number bound to an
// authorized router key.
type BRK struct {
	ASID    uint32 `json:"asn"`
	SKI     string `json:"ski"`
	PubKey  string `json:"pubkey"`
	Expires int64  `json:"expires"`
	TALID   uint32 `json:"talid"`
}

func (b *BRK) Less(than btree.Item) bool {
	o := than.(*BRK)
	if b.ASID != o.ASID {
		return b.ASID < o.ASID
	}
	if b.SKI != o.SKI {
		return b.SKI < o.SKI
	}
	return b.PubKey < o.PubKey
}

// BRKTree is the router-key registry, ordered by (AS, SKI, public key).
// Like AuthTree it assumes a single owner.
type BRKTree struct {
	tree *btree.BTree
}

func NewBRKTree() *BRKTree {
	return &BRKTree{
		tree: btree.New(btreeDegree),
	}
}

// Insert registers a router key. When the same (AS, SKI, public key)
// is already present, whichever entry expires later wins: re-validation
// runs may see the same router key re-issued with a longer validity.
func (t *BRKTree) Insert(brk *BRK) {
	if item := t.tree.Get(brk); item != nil {
		found := item.(*BRK)
		if found.Expires < brk.Expires {
			found.Expires = brk.Expires
			found.TALID = brk.TALID
		}
		return
	}
	t.tree.ReplaceOrInsert(brk)
}

// InsertCertKeys registers one entry per AS number covered by a
// validated BGPsec router certificate. Ranges wider than
// MaxRouterKeySpan are refused before anything is inserted.
func (t *BRKTree) InsertCertKeys(fn string, cert *librpki.ResourceCert) error {
	for i := range cert.ASs {
		as := &cert.ASs[i]
		if as.Type == librpki.ASRange && uint64(as.Max)-uint64(as.Min) > MaxRouterKeySpan {
			return &CertificateError{
				EType:       ERROR_SEMANTIC,
				Certificate: cert,
				Message: fmt.Sprintf("AS range %d-%d expands beyond %d router keys",
					as.Min, as.Max, MaxRouterKeySpan),
				File:  fn,
				Stack: callers(),
			}
		}
	}

	for i := range cert.ASs {
		as := &cert.ASs[i]
		switch as.Type {
		case librpki.ASId:
			t.insertOne(cert, as.ID)
		case librpki.ASRange:
			for asid := as.Min; ; asid++ {
				t.insertOne(cert, asid)
				if asid == as.Max {
					break
				}
			}
		default:
			// inherit is rejected at purpose validation; nothing to add
			continue
		}
	}
	return nil
}

func (t *BRKTree) insertOne(cert *librpki.ResourceCert, asid uint32) {
	t.Insert(&BRK{
		ASID:    asid,
		SKI:     cert.SKI,
		PubKey:  cert.PubKey,
		Expires: cert.Expires,
		TALID:   cert.TALID,
	})
}

func (t *BRKTree) Len() int {
	return t.tree.Len()
}

// Ascend visits every entry in (AS, SKI, public key) order until the
// callback returns false.
func (t *BRKTree) Ascend(fn func(*BRK) bool) {
	t.tree.Ascend(func(item btree.Item) bool {
		return fn(item.(*BRK))
	})
}
