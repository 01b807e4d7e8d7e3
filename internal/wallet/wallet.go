// Package wallet реализует работу с ключом EVM-кошелька:
// вычисление адреса и подпись текстовых сообщений по схеме personal_sign.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidKey возвращается, если приватный ключ не удалось разобрать.
var ErrInvalidKey = errors.New("invalid wallet private key")

// Key инкапсулирует приватный ключ кошелька.
type Key struct {
	priv *ecdsa.PrivateKey
}

// ParseKey разбирает приватный ключ из hex-строки (с префиксом 0x или без).
func ParseKey(hexKey string) (*Key, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, ErrInvalidKey
	}

	priv, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &Key{priv: priv}, nil
}

// Address возвращает checksum-адрес кошелька.
func (k *Key) Address() string {
	return crypto.PubkeyToAddress(k.priv.PublicKey).Hex()
}

// SignText подписывает текстовое сообщение по схеме personal_sign:
// подпись покрывает сообщение с каноническим префиксом Ethereum.
func (k *Key) SignText(message string) (string, error) {
	if k == nil || k.priv == nil {
		return "", fmt.Errorf("sign text: %w", ErrInvalidKey)
	}

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), k.priv)
	if err != nil {
		return "", fmt.Errorf("sign text: %w", err)
	}

	// Кошельки передают значение восстановления v в форме 27/28.
	sig[crypto.RecoveryIDOffset] += 27

	return hexutil.Encode(sig), nil
}
