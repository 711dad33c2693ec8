package providers

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark/backend/groth16"
)

// compressed proof layout: Ar (G1, 32 bytes), Bs (G2, 64 bytes), Krs (G1, 32 bytes)
const g1CompressedSize = 32
const g2CompressedSize = 64

var limbMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// encodeProof converts a gnark Groth16 proof into the contract calldata
// layout: each affine coordinate split into two 128-bit limbs, high limb
// first, rendered as decimal strings (pA[4], pB[8], pC[4])
func encodeProof(proof groth16.Proof) (*Proof, error) {
	buf := new(bytes.Buffer)
	_, err := proof.WriteTo(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proof; %s", err.Error())
	}

	raw := buf.Bytes()
	if len(raw) < g1CompressedSize*2+g2CompressedSize {
		return nil, fmt.Errorf("failed to marshal proof; unexpected %d-byte serialization", len(raw))
	}

	var ar, krs bn254.G1Affine
	var bs bn254.G2Affine

	_, err = ar.SetBytes(raw[:g1CompressedSize])
	if err != nil {
		return nil, fmt.Errorf("failed to decode proof point Ar; %s", err.Error())
	}

	_, err = bs.SetBytes(raw[g1CompressedSize : g1CompressedSize+g2CompressedSize])
	if err != nil {
		return nil, fmt.Errorf("failed to decode proof point Bs; %s", err.Error())
	}

	_, err = krs.SetBytes(raw[g1CompressedSize+g2CompressedSize : g1CompressedSize*2+g2CompressedSize])
	if err != nil {
		return nil, fmt.Errorf("failed to decode proof point Krs; %s", err.Error())
	}

	return &Proof{
		PA: append(coordinateLimbs(&ar.X), coordinateLimbs(&ar.Y)...),
		PB: append(
			append(coordinateLimbs(&bs.X.A0), coordinateLimbs(&bs.X.A1)...),
			append(coordinateLimbs(&bs.Y.A0), coordinateLimbs(&bs.Y.A1)...)...,
		),
		PC: append(coordinateLimbs(&krs.X), coordinateLimbs(&krs.Y)...),
	}, nil
}

func coordinateLimbs(coord *fp.Element) []string {
	v := coord.ToBigIntRegular(new(big.Int))
	return splitLimbs(v)
}

// splitLimbs splits a 256-bit coordinate into [high, low] 128-bit limbs
func splitLimbs(v *big.Int) []string {
	hi := new(big.Int).Rsh(v, 128)
	lo := new(big.Int).And(v, limbMask)
	return []string{hi.String(), lo.String()}
}
