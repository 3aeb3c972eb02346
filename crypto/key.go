package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Key is a secp256k1 account key used to sign transactions and KYC
// attestations.
type Key struct {
	privateKey *ecdsa.PrivateKey
}

func GenerateKey() (*Key, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Key{privateKey: priv}, nil
}

func NewKey(priv *ecdsa.PrivateKey) *Key {
	return &Key{privateKey: priv}
}

func LoadKeyFile(keyFilePath string) (*Key, error) {
	dat, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(string(dat)), "0x"))
	if err != nil {
		return nil, fmt.Errorf("error reading key from %v: %w", keyFilePath, err)
	}
	return &Key{privateKey: priv}, nil
}

func MustLoadKeyFile(keyFilePath string) *Key {
	k, err := LoadKeyFile(keyFilePath)
	if err != nil {
		cmtos.Exit(err.Error())
	}
	return k
}

func (k *Key) Save(keyFilePath string) error {
	return os.WriteFile(keyFilePath, []byte(hex.EncodeToString(crypto.FromECDSA(k.privateKey))), 0o600)
}

func (k *Key) PrivateKey() *ecdsa.PrivateKey {
	return k.privateKey
}

func (k *Key) PublicKey() []byte {
	return crypto.FromECDSAPub(&k.privateKey.PublicKey)
}

func (k *Key) Address() common.Address {
	return crypto.PubkeyToAddress(k.privateKey.PublicKey)
}

// Sign signs keccak256(data).
func (k *Key) Sign(data []byte) ([]byte, error) {
	return crypto.Sign(crypto.Keccak256(data), k.privateKey)
}
