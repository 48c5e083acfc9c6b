// Package rpa implements BLE Resolvable Private Address resolution (spec
// §9 "AES usage"): ah(irk, prand) via a single AES-128 block encryption,
// and RPA-vs-IRK matching. Grounded on rpa_resolver.c; uses the standard
// library's crypto/aes as the opaque aes_encrypt_128 primitive the spec
// explicitly allows ("a table-based or AES-NI implementation is fine").
package rpa

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
)

// IRKLen is the length of an Identity Resolving Key in bytes.
const IRKLen = 16

// AddrLen is the length of a BLE device address in bytes.
const AddrLen = 6

// Resolver caches the AES key schedule for the most recently used IRK and
// the most recently computed (prand, hash) pair, mirroring rpa_resolver.c's
// last_irk/last_roundKeys/last_prand/last_hash caching: recomputing an AES
// key schedule on every advertisement would be wasteful since RPA filtering
// runs per extended-advertisement (spec §9).
type Resolver struct {
	irk       [IRKLen]byte
	block     cipher.Block
	haveBlock bool

	lastPrand uint32
	lastHash  uint32
	haveLast  bool
}

// NewResolver returns a Resolver that matches RPAs against irk.
func NewResolver(irk [IRKLen]byte) *Resolver {
	r := &Resolver{irk: irk}
	r.rebuildBlock()
	return r
}

func (r *Resolver) rebuildBlock() {
	block, err := aes.NewCipher(r.irk[:])
	if err != nil {
		// crypto/aes.NewCipher only errors on a wrong key length; IRKLen
		// is fixed at 16, so this can never happen.
		panic(err)
	}
	r.block = block
	r.haveBlock = true
	r.haveLast = false
}

// SetIRK updates the resolving key, discarding any cached hash.
func (r *Resolver) SetIRK(irk [IRKLen]byte) {
	if r.haveBlock && bytes.Equal(r.irk[:], irk[:]) {
		return
	}
	r.irk = irk
	r.rebuildBlock()
}

// ah computes BLE_ah(irk, prand): AES-128-encrypt the zero-padded 24-bit
// prand, truncated to the 24 LSBs of the result.
func (r *Resolver) ah(prand uint32) uint32 {
	if r.haveLast && prand == r.lastPrand {
		return r.lastHash
	}

	var rPrime [16]byte
	rPrime[0] = byte(prand)
	rPrime[1] = byte(prand >> 8)
	rPrime[2] = byte(prand >> 16)

	var res [16]byte
	r.block.Encrypt(res[:], rPrime[:])

	hash := uint32(res[0]) | uint32(res[1])<<8 | uint32(res[2])<<16

	r.lastPrand = prand
	r.lastHash = hash
	r.haveLast = true
	return hash
}

// Resolve reports whether addr is a resolvable private address that
// resolves against the configured IRK (rpa_match in the original).
func (r *Resolver) Resolve(addr [AddrLen]byte) bool {
	if addr[5]&0xC0 != 0x40 {
		return false
	}

	hash := uint32(addr[0]) | uint32(addr[1])<<8 | uint32(addr[2])<<16
	prand := uint32(addr[3]) | uint32(addr[4])<<8 | uint32(addr[5])<<16

	return hash == r.ah(prand)
}
