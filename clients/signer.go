package clients

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/disburse/utils"
)

// Signer holds the funding account key. It never leaves the process.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: utils.AddressFromKey(key),
	}
}

// SignerFromHex builds a Signer from a hex encoded private key.
func SignerFromHex(hexKey string) (*Signer, error) {
	key, err := utils.ParsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	return NewSigner(key), nil
}

// LoadSigner reads the private key file at path.
func LoadSigner(path string) (*Signer, error) {
	key, err := utils.LoadPrivateKey(path)
	if err != nil {
		return nil, err
	}
	return NewSigner(key), nil
}

// Address is the funding account controlled by the signer.
func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) transactor(chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(s.key, chainID)
}
