// Package hashing provides the hashing, prime-ladder and cacheline-rounding
// support shared by the hash table core. It deliberately has no dependency on
// internal/hashtable so it can be unit-tested in isolation.
//
// © 2025 arena-cache authors. MIT License.
package hashing

// Primes is the fixed ladder of bucket counts the hash table is allowed to
// use. 42 is not prime but is kept as the floor, matching cachegrand's own
// ladder (and its comment: "not a prime number, but it's the answer!").
var Primes = [...]uint64{
	42, 101, 307, 677, 1523, 3389, 7639, 17203, 26813, 40213,
	60353, 90529, 135799, 203669, 305581, 458377, 687581, 1031399, 1547101, 2320651,
	5221501, 7832021, 11748391, 17622551, 26433887, 39650833, 59476253, 89214403, 133821599, 200732527,
	301099033, 451649113, 677472127, 1016208581, 1524312899, 2286469357, 3429704039, 4294967291,
}

// MaxBuckets is the largest bucket count the ladder supports.
const MaxBuckets = uint64(4294967291)

// Valid reports whether n is within the representable bucket-count range.
func Valid(n uint64) bool {
	return n <= MaxBuckets
}

// NextPrime returns the smallest entry of Primes strictly greater than n, or
// 0 if n is already beyond the ladder's ceiling (mirrors
// hashtable_support_primenumbers_next).
func NextPrime(n uint64) uint64 {
	for _, p := range Primes {
		if n < p {
			return p
		}
	}
	return 0
}

// Mod computes n % prime using a dispatch over the known ladder entries so the
// compiler can fold each branch to a constant-divisor modulo, avoiding a
// general (slow) 64-bit division on the hot lookup path. prime must be a
// member of Primes; Mod returns 0 for any other input, mirroring the C
// source's behavior of falling through the generated switch.
func Mod(n, prime uint64) uint64 {
	switch prime {
	case 42:
		return n % 42
	case 101:
		return n % 101
	case 307:
		return n % 307
	case 677:
		return n % 677
	case 1523:
		return n % 1523
	case 3389:
		return n % 3389
	case 7639:
		return n % 7639
	case 17203:
		return n % 17203
	case 26813:
		return n % 26813
	case 40213:
		return n % 40213
	case 60353:
		return n % 60353
	case 90529:
		return n % 90529
	case 135799:
		return n % 135799
	case 203669:
		return n % 203669
	case 305581:
		return n % 305581
	case 458377:
		return n % 458377
	case 687581:
		return n % 687581
	case 1031399:
		return n % 1031399
	case 1547101:
		return n % 1547101
	case 2320651:
		return n % 2320651
	case 5221501:
		return n % 5221501
	case 7832021:
		return n % 7832021
	case 11748391:
		return n % 11748391
	case 17622551:
		return n % 17622551
	case 26433887:
		return n % 26433887
	case 39650833:
		return n % 39650833
	case 59476253:
		return n % 59476253
	case 89214403:
		return n % 89214403
	case 133821599:
		return n % 133821599
	case 200732527:
		return n % 200732527
	case 301099033:
		return n % 301099033
	case 451649113:
		return n % 451649113
	case 677472127:
		return n % 677472127
	case 1016208581:
		return n % 1016208581
	case 1524312899:
		return n % 1524312899
	case 2286469357:
		return n % 2286469357
	case 3429704039:
		return n % 3429704039
	case 4294967291:
		return n % 4294967291
	default:
		return 0
	}
}
