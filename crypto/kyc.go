package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	DomainName    = "Frabric Protocol"
	DomainVersion = "1"
)

var (
	ErrSignatureLength = errors.New("signature must be 65 bytes")
	ErrSignatureValues = errors.New("signature values out of range")
)

// Verifier is the cryptographic primitive layer consumed by the participant
// registry.
type Verifier interface {
	VerifyProof(proof []common.Hash, root, leaf common.Hash) bool
	RecoverKYCSigner(participant common.Address, kycHash common.Hash, sig []byte) (common.Address, error)
}

// KYCDomain is the EIP-712 domain KYC agents sign attestations under.
type KYCDomain struct {
	ChainID           uint64
	VerifyingContract common.Address
}

var _ Verifier = &KYCVerifier{}

type KYCVerifier struct {
	domain KYCDomain
}

func NewKYCVerifier(domain KYCDomain) *KYCVerifier {
	return &KYCVerifier{domain: domain}
}

func (v *KYCVerifier) typedData(participant common.Address, kycHash common.Hash) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"KYCVerification": {
				{Name: "participant", Type: "address"},
				{Name: "kycHash", Type: "bytes32"},
			},
		},
		PrimaryType: "KYCVerification",
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).SetUint64(v.domain.ChainID)),
			VerifyingContract: v.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"participant": participant.Hex(),
			"kycHash":     kycHash.Hex(),
		},
	}
}

// Hash returns the EIP-712 digest binding (participant, kycHash) to the
// domain.
func (v *KYCVerifier) Hash(participant common.Address, kycHash common.Hash) (h common.Hash, err error) {
	digest, _, err := apitypes.TypedDataAndHash(v.typedData(participant, kycHash))
	if err != nil {
		return
	}
	copy(h[:], digest)
	return
}

func (v *KYCVerifier) VerifyProof(proof []common.Hash, root, leaf common.Hash) bool {
	return VerifyProof(proof, root, leaf)
}

func (v *KYCVerifier) RecoverKYCSigner(participant common.Address, kycHash common.Hash, sig []byte) (signer common.Address, err error) {
	if len(sig) != crypto.SignatureLength {
		return signer, ErrSignatureLength
	}
	h, err := v.Hash(participant, kycHash)
	if err != nil {
		return
	}
	return RecoverAddress(h, sig)
}

// SignKYC produces a wallet-style (v = 27/28) attestation signature.
func (v *KYCVerifier) SignKYC(key *ecdsa.PrivateKey, participant common.Address, kycHash common.Hash) ([]byte, error) {
	h, err := v.Hash(participant, kycHash)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(h[:], key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverAddress accepts both raw (0/1) and wallet (27/28) recovery ids.
// Only canonical low-s signatures recover.
func RecoverAddress(hash common.Hash, sig []byte) (addr common.Address, err error) {
	if len(sig) != crypto.SignatureLength {
		return addr, ErrSignatureLength
	}
	s := make([]byte, len(sig))
	copy(s, sig)
	if s[crypto.RecoveryIDOffset] >= 27 {
		s[crypto.RecoveryIDOffset] -= 27
	}
	r, sv := new(big.Int).SetBytes(s[:32]), new(big.Int).SetBytes(s[32:64])
	if !crypto.ValidateSignatureValues(s[crypto.RecoveryIDOffset], r, sv, true) {
		return addr, ErrSignatureValues
	}
	pub, err := crypto.SigToPub(hash[:], s)
	if err != nil {
		return addr, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
