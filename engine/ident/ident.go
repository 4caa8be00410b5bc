// Package ident implements the deterministic hashing used to derive stable
// method tokens: a 32-bit FNV-1a over UTF-8 bytes, and a small mixing
// function to combine several hashes into one. Every operation here must be
// bitwise-identical across platforms and processes, so nothing here may
// depend on Go's randomized map iteration or on platform string hashing.
package ident

// fnv1aOffset and fnv1aPrime are the standard 32-bit FNV-1a constants.
const (
	fnv1aOffset uint32 = 0x811C9DC5
	fnv1aPrime  uint32 = 0x01000193
)

// FNV1aBytes computes the 32-bit FNV-1a hash of s's UTF-8 encoding. The
// empty string hashes to 0: the accumulator result for an empty byte
// sequence would ordinarily be the offset basis itself, so it is
// special-cased to give the empty/null case a distinguished value.
func FNV1aBytes(s string) int32 {
	if s == "" {
		return 0
	}
	h := fnv1aOffset
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnv1aPrime
	}
	return int32(h)
}

// Combine mixes zero or more hash values into one, starting from seed 17
// and applying h = h*33 ^ x for each x in order. The empty input combines to
// 0.
func Combine(hs ...int32) int32 {
	if len(hs) == 0 {
		return 0
	}
	h := uint32(17)
	for _, x := range hs {
		h = h*33 ^ uint32(x)
	}
	return int32(h)
}

// MethodToken derives the stable 32-bit token for a method, used as the key
// into the frame descriptor catalog and the entry-point registry. It must
// remain stable for a given (type, method, parameter types) tuple across
// builds and machines.
func MethodToken(typeName, methodName string, paramTypeNames ...string) int32 {
	hs := make([]int32, 0, 2+len(paramTypeNames))
	hs = append(hs, FNV1aBytes(typeName), FNV1aBytes(methodName))
	for _, p := range paramTypeNames {
		hs = append(hs, FNV1aBytes(p))
	}
	return Combine(hs...)
}
