// Package service реализует операции бота, доступные внешним слоям
// (HTTP-интерфейсу и планировщику): каждая операция принимает учётные
// данные и возвращает готовый текстовый блок.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/questbot-system/internal/config"
	"github.com/mmeshcher/questbot-system/internal/loyalty"
	"github.com/mmeshcher/questbot-system/internal/model"
	"github.com/mmeshcher/questbot-system/internal/tasks"
	"github.com/mmeshcher/questbot-system/internal/transport"
)

const noCredentialMessage = "⚠️ No credential configured. Set a session cookie or a wallet key first."

// PlatformClient описывает операции клиента платформы, используемые сервисом.
type PlatformClient interface {
	GetAuthSession(ctx context.Context) (*model.AuthSession, error)
	GetUserInfo(ctx context.Context) (*model.User, error)
	GetLoyaltyRules(ctx context.Context, groupID string, includeSpecial bool) []model.LoyaltyRule
	GetRulesStatus(ctx context.Context) map[string]model.RuleStatus
	ClaimRule(ctx context.Context, ruleID string) (loyalty.ClaimResult, error)
	GetPoints(ctx context.Context) (string, error)
}

// Service владеет общими ресурсами (транспортами, аутентификатором)
// и создаёт по одному клиенту платформы на каждую операцию.
type Service struct {
	cfg    *config.Config
	logger *zap.Logger

	newClient func(cred model.Credential) PlatformClient
}

// NewService создаёт сервис бота. primary и secondary — общие транспорты,
// разделяемые клиентами всех сессий.
func NewService(cfg *config.Config, auth loyalty.Authenticator, primary, secondary transport.Doer, logger *zap.Logger) *Service {
	clientCfg := loyalty.Config{
		BaseURL:           cfg.PlatformBaseURL,
		WebsiteID:         cfg.WebsiteID,
		OrganizationID:    cfg.OrganizationID,
		LoyaltyCurrencyID: cfg.LoyaltyCurrencyID,
	}

	return &Service{
		cfg:    cfg,
		logger: logger,
		newClient: func(cred model.Credential) PlatformClient {
			return loyalty.NewClient(clientCfg, cred, auth, primary, secondary, logger)
		},
	}
}

// StatusReport возвращает текстовый блок о состоянии аккаунта.
func (s *Service) StatusReport(ctx context.Context, cred model.Credential) (string, error) {
	if cred.Kind == model.CredentialNone {
		return noCredentialMessage, nil
	}

	client := s.newClient(cred)

	session, err := client.GetAuthSession(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch session: %w", err)
	}

	user, err := client.GetUserInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch user: %w", err)
	}

	var b strings.Builder
	b.WriteString("📊 Account status\n")
	if user != nil {
		fmt.Fprintf(&b, "👤 User ID: %s\n", user.ID)
	} else {
		b.WriteString("👤 User ID: not found\n")
	}
	fmt.Fprintf(&b, "💰 Wallet: %s\n", session.Address)
	fmt.Fprintf(&b, "📅 Session expires: %s", session.Expires.Format("2006-01-02 15:04 MST"))

	return b.String(), nil
}

// PointsReport возвращает текстовый блок с балансом баллов.
func (s *Service) PointsReport(ctx context.Context, cred model.Credential) (string, error) {
	if cred.Kind == model.CredentialNone {
		return noCredentialMessage, nil
	}

	points, err := s.newClient(cred).GetPoints(ctx)
	if err != nil {
		if errors.Is(err, loyalty.ErrUserNotFound) {
			return "⚠️ Account not found on the platform.", nil
		}
		return "", fmt.Errorf("fetch points: %w", err)
	}

	return fmt.Sprintf("💰 Points: %s", points), nil
}

// TaskList возвращает перечень видимых правил с их состоянием.
func (s *Service) TaskList(ctx context.Context, cred model.Credential) (string, error) {
	if cred.Kind == model.CredentialNone {
		return noCredentialMessage, nil
	}

	client := s.newClient(cred)

	rules := client.GetLoyaltyRules(ctx, "", false)
	if len(rules) == 0 {
		return "No tasks available or failed to fetch tasks.", nil
	}

	statuses := client.GetRulesStatus(ctx)

	lines := make([]string, 0, len(rules))
	for _, rule := range rules {
		marker := "▫️"
		if st, ok := statuses[rule.ID]; ok && st.Done() {
			marker = "✅"
		}
		name := rule.Name
		if name == "" {
			name = rule.ID
		}
		lines = append(lines, fmt.Sprintf("%s %s — %s points (%s)", marker, name,
			formatAmount(rule.Amount), rule.ClaimType))
	}

	return strings.Join(lines, "\n"), nil
}

// CompleteTasks выполняет проход по ручным правилам и возвращает отчёт.
func (s *Service) CompleteTasks(ctx context.Context, cred model.Credential) (string, error) {
	if cred.Kind == model.CredentialNone {
		return noCredentialMessage, nil
	}

	r := tasks.NewReconciler(s.newClient(cred), s.cfg.ClaimDelay, s.logger)
	return r.CompleteTasks(ctx)
}

// DailyCheckin выполняет чек-ин и возвращает отчёт.
func (s *Service) DailyCheckin(ctx context.Context, cred model.Credential) (string, error) {
	if cred.Kind == model.CredentialNone {
		return noCredentialMessage, nil
	}

	r := tasks.NewReconciler(s.newClient(cred), s.cfg.ClaimDelay, s.logger)
	return r.DailyCheckin(ctx)
}

func formatAmount(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
