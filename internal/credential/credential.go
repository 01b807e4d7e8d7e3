// Package credential нормализует учётные данные пользователя в единую форму.
package credential

import (
	"strings"

	"github.com/mmeshcher/questbot-system/internal/model"
	"github.com/mmeshcher/questbot-system/internal/wallet"
)

// Resolve выбирает одну активную форму учётных данных с фиксированным
// приоритетом: явный cookie > ключ кошелька > отсутствие данных.
// Функция чистая: не делает сетевых вызовов и не меняет внешнее состояние.
func Resolve(cookie, privateKeyHex string) (model.Credential, error) {
	if c := strings.TrimSpace(cookie); c != "" {
		return model.Credential{Kind: model.CredentialCookie, Cookie: c}, nil
	}

	if strings.TrimSpace(privateKeyHex) != "" {
		key, err := wallet.ParseKey(privateKeyHex)
		if err != nil {
			return model.Credential{Kind: model.CredentialNone}, err
		}
		return model.Credential{Kind: model.CredentialWallet, Wallet: key}, nil
	}

	return model.Credential{Kind: model.CredentialNone}, nil
}
