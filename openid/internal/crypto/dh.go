package crypto

import "math/big"

// defaultModulusHex is the 1024-bit MODP group 2 prime (RFC 2409 second
// Oakley group), the default DH modulus used by OpenID 1.1 associate
// requests when the consumer does not override openid.dh_modulus.
const defaultModulusHex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD" +
	"129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B" +
	"302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0" +
	"BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381FF" +
	"FFFFFFFFFFFFFF"

// DiffieHellman carries one side's key-agreement parameters. A fresh one is
// created per associate round-trip; it is never persisted.
type DiffieHellman struct {
	P    *big.Int
	G    *big.Int
	X    *big.Int // private exponent
	XPub *big.Int
}

// DefaultModulus returns the standard OpenID 1.1 DH modulus.
func DefaultModulus() *big.Int {
	p := new(big.Int)
	p.SetString(defaultModulusHex, 16)
	return p
}

// DefaultGenerator returns the standard OpenID 1.1 DH generator, g = 2.
func DefaultGenerator() *big.Int {
	return big.NewInt(2)
}

// NewDiffieHellman builds a DH exchange over the given modulus/generator,
// drawing a private exponent from [1, p-2] using randSource for
// entropy (normally crypto/rand, swappable in tests for determinism).
func NewDiffieHellman(p, g *big.Int, randSource func([]byte) ([]byte, error)) (*DiffieHellman, error) {
	x, err := randomExponent(p, randSource)
	if err != nil {
		return nil, err
	}
	pub := new(big.Int).Exp(g, x, p)
	return &DiffieHellman{P: p, G: g, X: x, XPub: pub}, nil
}

// randomExponent draws a value in [1, p-2] by reading as many random bytes
// as p has, reducing them modulo p-2 and adding one. The result is always in
// range, so the loop returns on its first pass. The reduction is close to
// uniform only when p lies just below a power of 256, as the default modulus
// does.
func randomExponent(p *big.Int, randSource func([]byte) ([]byte, error)) (*big.Int, error) {
	upper := new(big.Int).Sub(p, big.NewInt(2)) // p - 2, inclusive upper bound
	byteLen := (p.BitLen() + 7) / 8
	for {
		raw, err := randSource(make([]byte, byteLen))
		if err != nil {
			return nil, err
		}
		x := new(big.Int).SetBytes(raw)
		x.Mod(x, upper)
		x.Add(x, big.NewInt(1)) // shift into [1, p-2]
		if x.Sign() > 0 && x.Cmp(upper) <= 0 {
			return x, nil
		}
	}
}

// PublicValue returns g^x mod p, the value sent to the provider as
// openid.dh_consumer_public.
func (d *DiffieHellman) PublicValue() *big.Int { return d.XPub }

// SharedSecret computes Y^x mod p given the provider's public value Y.
func (d *DiffieHellman) SharedSecret(y *big.Int) *big.Int {
	return new(big.Int).Exp(y, d.X, d.P)
}
