// Package cryptoprim implements the device protocol's authentication
// primitives: a 32-bit Diffie-Hellman exchange and a keyed polynomial
// MAC.
//
// These parameters are deliberately toy-sized and MUST be reproduced
// bit-identically, never strengthened (spec.md §9 Design Notes). Do not
// substitute a real KEM or cryptographic hash here -- the 32-bit modulus
// and XOR-keyed polynomial hash are part of the wire contract, not an
// implementation detail.
package cryptoprim

import "encoding/binary"

// DH parameters (spec.md §3).
const (
	// DHGenerator is the Diffie-Hellman generator g.
	DHGenerator uint64 = 5

	// DHModulus is the Diffie-Hellman modulus p, a 32-bit prime.
	DHModulus uint64 = 0xFFFFFFFB

	// PSK is the pre-shared 32-bit key used to authenticate the handshake.
	PSK uint32 = 0xFEED5EED
)

// ModExp computes base^exp mod m using square-and-multiply with wide
// (64-bit) intermediates so the 32-bit multiplications inside never
// overflow before the modular reduction.
func ModExp(base, exp, m uint64) uint64 {
	if m == 1 {
		return 0
	}

	result := uint64(1)
	base %= m

	for exp > 0 {
		if exp&1 == 1 {
			result = (result * base) % m
		}
		exp >>= 1
		base = (base * base) % m
	}

	return result
}

// DHPublic computes g^secret mod p as a 32-bit public key.
func DHPublic(secret uint32) uint32 {
	return uint32(ModExp(DHGenerator, uint64(secret), DHModulus))
}

// DHShared computes peerPublic^ourSecret mod p, the shared secret both
// sides converge on after exchanging public keys.
func DHShared(peerPublic, ourSecret uint32) uint32 {
	return uint32(ModExp(uint64(peerPublic), uint64(ourSecret), DHModulus))
}

// Hash folds b into a 32-bit polynomial hash: acc = 31*acc + byte, for
// each byte, wrapping mod 2^32 (spec.md §3).
func Hash(b []byte) uint32 {
	var acc uint32
	for _, c := range b {
		acc = 31*acc + uint32(c)
	}
	return acc
}

// MAC computes the keyed, non-cryptographic MAC used throughout the
// handshake and authenticated traffic: hash(b) XOR key.
func MAC(key uint32, b []byte) uint32 {
	return Hash(b) ^ key
}

// authTagBlockLen is the fixed 16-byte block auth tags are computed over:
// pubFirst[4] | pubSecond[4] | nonce[8].
const authTagBlockLen = 16

// AuthTag builds the 16-byte authentication block and returns its PSK-keyed
// MAC. Order of the two public keys matters: the sender of a given
// authenticator always supplies its own public key as pubFirst
// (spec.md §4.3 — "Order of the two public keys matters").
func AuthTag(pubFirst, pubSecond uint32, nonce uint64) uint32 {
	block := make([]byte, authTagBlockLen)
	binary.BigEndian.PutUint32(block[0:4], pubFirst)
	binary.BigEndian.PutUint32(block[4:8], pubSecond)
	binary.BigEndian.PutUint64(block[8:16], nonce)
	return MAC(PSK, block)
}

// AuthenticatedHMAC computes the post-handshake session HMAC: the
// shared-secret-keyed MAC over a message's presentation-layer bytes
// (iin[2] ++ application bytes).
func AuthenticatedHMAC(sharedSecret uint32, presentationBytes []byte) uint32 {
	return MAC(sharedSecret, presentationBytes)
}
