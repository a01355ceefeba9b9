package account

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Account is a Signer loaded from the user's key material.
type Account struct {
	signer  Signer
	address common.Address
}

func NewKeystoreAccount(file string, password string) (*Account, error) {
	_, key, err := PrivateKeyFromKeystore(file, password)
	if err != nil {
		return nil, err
	}
	signer := NewKeySigner(key)
	return &Account{signer, signer.Address()}, nil
}

func NewPrivateKeyAccount(hex string) (*Account, error) {
	_, key, err := PrivateKeyFromHex(hex)
	if err != nil {
		return nil, err
	}
	signer := NewKeySigner(key)
	return &Account{signer, signer.Address()}, nil
}

func (self *Account) Address() common.Address {
	return self.address
}

func (self *Account) AddressHex() string {
	return self.address.Hex()
}

func (self *Account) SignHash(hash common.Hash) ([]byte, error) {
	sig, err := self.signer.SignHash(hash)
	if err != nil {
		return nil, fmt.Errorf("couldn't sign the hash: %w", err)
	}
	return sig, nil
}

func (self *Account) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signedTx, err := self.signer.SignTx(tx, chainID)
	if err != nil {
		return tx, fmt.Errorf("couldn't sign the tx: %w", err)
	}
	return signedTx, nil
}
