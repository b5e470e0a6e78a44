package fingerprint

import "github.com/cespare/xxhash/v2"

// mix is the bit-avalanche finalizer used throughout this package to turn a
// weakly-distributed combination into a well-spread 64-bit value, using the
// MurmurHash3 fmix64 finalizer constants: no allocation, good dispersion,
// cheap to run per token.
func mix(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// engineSeed folds the engine version into every hash computed by this
// package, so bumping model.EngineVersion silently invalidates previously
// computed fingerprints without an explicit migration step.
func engineSeed(version uint64) uint64 {
	const fnvOffsetBasis = 0xcbf29ce484222325
	return mix(version ^ fnvOffsetBasis)
}

// codeOf maps a token or AST node kind string to a seeded 64-bit code.
func codeOf(kind string, seed uint64) uint64 {
	return mix(xxhash.Sum64String(kind) ^ seed)
}

// combine folds a child hash into an accumulator in a way that depends on
// order: combine(combine(h, a), b) != combine(combine(h, b), a) in general,
// which is what makes AST subtree hashing sensitive to child order (spec
// §4.2: "Children order must be preserved (the hash is not commutative)").
func combine(acc, childHash uint64) uint64 {
	const goldenRatio64 = 0x9E3779B97F4A7C15
	return mix(acc*goldenRatio64 + childHash)
}
