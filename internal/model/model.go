// Package model содержит доменные сущности квест-бота.
package model

import "time"

// CredentialKind описывает форму учётных данных пользователя.
type CredentialKind string

const (
	CredentialNone   CredentialKind = "none"
	CredentialCookie CredentialKind = "cookie"
	CredentialWallet CredentialKind = "wallet"
)

// Signer подписывает текстовое сообщение ключом кошелька.
type Signer interface {
	Address() string
	SignText(message string) (string, error)
}

// Credential представляет нормализованные учётные данные клиента:
// либо готовый cookie сессии, либо ключ кошелька для получения cookie.
type Credential struct {
	Kind   CredentialKind
	Cookie string
	Wallet Signer
}

// ClaimType описывает способ получения награды за правило.
type ClaimType string

const (
	ClaimTypeManual    ClaimType = "manual"
	ClaimTypeAutomatic ClaimType = "automatic"
)

// LoyaltyRule описывает одно правило (задание) платформы лояльности.
type LoyaltyRule struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	ClaimType ClaimType `json:"claimType"`
	Amount    float64   `json:"amount"`
	GroupID   string    `json:"loyaltyRuleGroupId,omitempty"`
	HideInUI  bool      `json:"hideInUi"`
	IsActive  bool      `json:"isActive"`
}

// RuleStatus описывает состояние выполнения правила пользователем.
type RuleStatus struct {
	RuleID    string     `json:"loyaltyRuleId"`
	Completed bool       `json:"completed"`
	ClaimedAt *time.Time `json:"createdAt,omitempty"`
}

// Done сообщает, считается ли правило выполненным в снимке статусов.
func (s RuleStatus) Done() bool {
	return s.Completed || s.ClaimedAt != nil
}

// User представляет запись пользователя платформы.
type User struct {
	ID            string `json:"id"`
	WalletAddress string `json:"walletAddress"`
}

// PointsAccount содержит баланс пользователя в одной валюте платформы.
type PointsAccount struct {
	LoyaltyCurrencyID string  `json:"loyaltyCurrencyId"`
	Balance           float64 `json:"balance"`
}

// AuthSession описывает дескриптор активной сессии платформы.
type AuthSession struct {
	Address string    `json:"address"`
	Expires time.Time `json:"expires"`
	User    *User     `json:"user,omitempty"`
}

// OutcomeKind описывает исход обработки одного правила.
type OutcomeKind string

const (
	OutcomeAlreadyCompleted OutcomeKind = "already_completed"
	OutcomeClaimed          OutcomeKind = "claimed"
	OutcomeFailed           OutcomeKind = "failed"
)

// ClaimOutcome содержит результат обработки одного правила в рамках прохода.
type ClaimOutcome struct {
	Rule   LoyaltyRule
	Kind   OutcomeKind
	Reward float64
	Reason string
}

// SessionRecord содержит сохранённые данные одной пользовательской сессии бота.
type SessionRecord struct {
	ID         string
	Cookie     string
	PrivateKey string
	AutoMode   bool
	UpdatedAt  time.Time
}
