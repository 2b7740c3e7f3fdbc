// This file is part of duskchain.
//
// duskchain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// duskchain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with duskchain. If not, see <http://www.gnu.org/licenses/>.

// Package core implements the consensus and replication substrate: blocks,
// transactions, proof-of-work, the chain store, and the UTXO index.
package core

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"math/big"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"

	"duskchain/core/chainerrors"
)

// AddressVersion is the leading byte of every base58check-encoded address.
const AddressVersion = byte(0x00)

// addrChecksumLen is the number of checksum bytes appended to a versioned
// payload before base58 encoding.
const addrChecksumLen = 4

var base58Alphabet = []byte("123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz")

// Curve is the single supported elliptic curve. The system does not offer
// cryptographic agility.
func Curve() elliptic.Curve {
	return elliptic.P256()
}

// Sha256 returns the SHA-256 digest of data.
func Sha256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// DoubleSha256 returns SHA-256(SHA-256(data)).
func DoubleSha256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// Ripemd160 returns the RIPEMD-160 digest of data.
func Ripemd160(data []byte) []byte {
	hasher := ripemd160.New()
	// hash.Hash.Write never returns an error.
	_, _ = hasher.Write(data)
	return hasher.Sum(nil)
}

// HashPubKey computes RIPEMD160(SHA256(pubKey)), the locking hash stored in
// a TXOutput and embedded in an address.
func HashPubKey(pubKey []byte) []byte {
	return Ripemd160(Sha256(pubKey))
}

// Checksum returns the first addrChecksumLen bytes of DoubleSha256(payload).
func Checksum(payload []byte) []byte {
	return DoubleSha256(payload)[:addrChecksumLen]
}

// Base58Encode encodes input as base58, preserving leading zero bytes as
// leading '1' characters.
func Base58Encode(input []byte) []byte {
	x := new(big.Int).SetBytes(input)
	base := big.NewInt(int64(len(base58Alphabet)))
	zero := big.NewInt(0)
	mod := new(big.Int)

	var encoded []byte
	for x.Cmp(zero) != 0 {
		x.DivMod(x, base, mod)
		encoded = append(encoded, base58Alphabet[mod.Int64()])
	}
	reverse(encoded)

	for _, b := range input {
		if b != 0x00 {
			break
		}
		encoded = append([]byte{base58Alphabet[0]}, encoded...)
	}
	return encoded
}

// Base58Decode reverses Base58Encode.
func Base58Decode(input []byte) []byte {
	result := new(big.Int)
	leadingZeros := 0
	for _, b := range input {
		if b != base58Alphabet[0] {
			break
		}
		leadingZeros++
	}

	base := big.NewInt(int64(len(base58Alphabet)))
	for _, b := range input {
		idx := bytes.IndexByte(base58Alphabet, b)
		if idx < 0 {
			continue
		}
		result.Mul(result, base)
		result.Add(result, big.NewInt(int64(idx)))
	}

	decoded := result.Bytes()
	return append(bytes.Repeat([]byte{0x00}, leadingZeros), decoded...)
}

// AddressFromPubKeyHash renders a 20-byte pubkey hash as a base58check
// address: VERSION || pubKeyHash || checksum4.
func AddressFromPubKeyHash(pubKeyHash []byte) string {
	versioned := append([]byte{AddressVersion}, pubKeyHash...)
	full := append(versioned, Checksum(versioned)...)
	return string(Base58Encode(full))
}

// PubKeyHashFromAddress validates addr and returns the 20-byte pubkey hash
// it encodes.
func PubKeyHashFromAddress(addr string) ([]byte, error) {
	full := Base58Decode([]byte(addr))
	if len(full) < addrChecksumLen+1 {
		return nil, errors.WithStack(chainerrors.ErrInvalidAddress)
	}

	version := full[0]
	pubKeyHash := full[1 : len(full)-addrChecksumLen]
	checksum := full[len(full)-addrChecksumLen:]

	expected := Checksum(append([]byte{version}, pubKeyHash...))
	if !bytes.Equal(checksum, expected) || version != AddressVersion {
		return nil, errors.WithStack(chainerrors.ErrInvalidAddress)
	}
	return pubKeyHash, nil
}

// ValidateAddress reports whether addr round-trips through base58check with
// a matching checksum.
func ValidateAddress(addr string) bool {
	_, err := PubKeyHashFromAddress(addr)
	return err == nil
}

// GenerateKeyPair returns a fresh P-256 key pair. The public key is the raw
// uncompressed concatenation of X and Y.
func GenerateKeyPair() (ecdsa.PrivateKey, []byte, error) {
	private, err := ecdsa.GenerateKey(Curve(), rand.Reader)
	if err != nil {
		return ecdsa.PrivateKey{}, nil, errors.Wrap(err, "generate ecdsa key pair")
	}
	pubKey := MarshalPubKey(&private.PublicKey)
	return *private, pubKey, nil
}

// MarshalPubKey renders a public key as the raw X||Y bytes this system uses
// on the wire and in TXInput.PubKey.
func MarshalPubKey(pub *ecdsa.PublicKey) []byte {
	byteLen := (pub.Curve.Params().BitSize + 7) / 8
	buf := make([]byte, 2*byteLen)
	pub.X.FillBytes(buf[:byteLen])
	pub.Y.FillBytes(buf[byteLen:])
	return buf
}

// UnmarshalPubKey reconstructs a public key from the raw X||Y encoding.
func UnmarshalPubKey(raw []byte) *ecdsa.PublicKey {
	half := len(raw) / 2
	x := new(big.Int).SetBytes(raw[:half])
	y := new(big.Int).SetBytes(raw[half:])
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
}

// MarshalPrivateKeyPKCS8 encodes priv in PKCS#8 form, the format wallet
// files persist private keys in.
func MarshalPrivateKeyPKCS8(priv *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, errors.Wrap(err, "marshal pkcs8 private key")
	}
	return der, nil
}

// UnmarshalPrivateKeyPKCS8 decodes a PKCS#8-encoded P-256 private key.
func UnmarshalPrivateKeyPKCS8(der []byte) (ecdsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return ecdsa.PrivateKey{}, errors.Wrap(err, "parse pkcs8 private key")
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return ecdsa.PrivateKey{}, errors.WithStack(chainerrors.ErrKeyDecode)
	}
	return *priv, nil
}

// Sign produces a fixed-length (r||s) P-256/SHA-256 signature over digest.
// digest is expected to already be a SHA-256 hash (callers pass a
// transaction's trimmed-copy id).
func Sign(priv *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		return nil, errors.Wrap(err, "ecdsa sign")
	}

	byteLen := (priv.Curve.Params().BitSize + 7) / 8
	sig := make([]byte, 2*byteLen)
	r.FillBytes(sig[:byteLen])
	s.FillBytes(sig[byteLen:])
	return sig, nil
}

// Verify checks a fixed-length (r||s) signature produced by Sign.
func Verify(pub *ecdsa.PublicKey, digest, sig []byte) bool {
	if len(sig) == 0 || len(sig)%2 != 0 {
		return false
	}
	half := len(sig) / 2
	r := new(big.Int).SetBytes(sig[:half])
	s := new(big.Int).SetBytes(sig[half:])
	return ecdsa.Verify(pub, digest, r, s)
}

func reverse(data []byte) {
	for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
		data[i], data[j] = data[j], data[i]
	}
}
