package wallet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressFromKey derives the account address of a hex private key.
func AddressFromKey(hexKey string) (common.Address, error) {
	hexKey, _, err := NormalizeKey(hexKey)
	if err != nil {
		return common.Address{}, err
	}
	pk, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return common.Address{}, fmt.Errorf("wallet: invalid secp256k1 key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(pk.PublicKey), nil
}

// Oracle is the identity the backend resolves markets with.
type Oracle struct {
	Address common.Address
}

// LoadOracle loads the key from src and checks it against an expected
// address when one is configured.
func LoadOracle(src KeySource, expected string) (Oracle, error) {
	key, err := LoadKey(src)
	if err != nil {
		return Oracle{}, err
	}
	addr, err := AddressFromKey(key)
	if err != nil {
		return Oracle{}, err
	}
	if expected != "" {
		if !common.IsHexAddress(expected) {
			return Oracle{}, fmt.Errorf("wallet: oracle address %q is not an address", expected)
		}
		if common.HexToAddress(expected) != addr {
			return Oracle{}, fmt.Errorf("wallet: oracle key belongs to %s, configured address is %s", addr.Hex(), expected)
		}
	}
	return Oracle{Address: addr}, nil
}
