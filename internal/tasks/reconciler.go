// Package tasks реализует сверку правил платформы с текущим состоянием
// выполнения и формирование отчёта по клеймам.
package tasks

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/questbot-system/internal/loyalty"
	"github.com/mmeshcher/questbot-system/internal/model"
)

// Platform описывает операции клиента платформы, используемые сверкой.
type Platform interface {
	GetLoyaltyRules(ctx context.Context, groupID string, includeSpecial bool) []model.LoyaltyRule
	GetRulesStatus(ctx context.Context) map[string]model.RuleStatus
	ClaimRule(ctx context.Context, ruleID string) (loyalty.ClaimResult, error)
}

// Reconciler выполняет проходы по правилам строго последовательно,
// с фиксированной паузой между клеймами, чтобы не провоцировать
// анти-бот защиту и лимиты платформы.
type Reconciler struct {
	client Platform
	delay  time.Duration
	logger *zap.Logger
}

// NewReconciler создаёт сверку поверх клиента платформы.
func NewReconciler(client Platform, delay time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		client: client,
		delay:  delay,
		logger: logger,
	}
}

// CompleteTasks обрабатывает все правила с ручным клеймом: уже выполненные
// по снимку статусов пропускаются, остальные клеймятся по одному разу.
// Снимок статусов берётся один раз до прохода и не перечитывается.
func (r *Reconciler) CompleteTasks(ctx context.Context) (string, error) {
	rules := r.client.GetLoyaltyRules(ctx, "", false)

	candidates := make([]model.LoyaltyRule, 0, len(rules))
	for _, rule := range rules {
		if rule.ClaimType == model.ClaimTypeManual {
			candidates = append(candidates, rule)
		}
	}

	if len(candidates) == 0 {
		return "No claimable tasks available.", nil
	}

	statuses := r.client.GetRulesStatus(ctx)

	outcomes, err := r.process(ctx, candidates, statuses, true)
	if err != nil {
		return "", err
	}

	return renderReport(outcomes), nil
}

// DailyCheckin клеймит все правила чек-ина безусловно, без сверки
// со снимком статусов.
func (r *Reconciler) DailyCheckin(ctx context.Context) (string, error) {
	rules := r.client.GetLoyaltyRules(ctx, "", false)

	candidates := make([]model.LoyaltyRule, 0, len(rules))
	for _, rule := range rules {
		if isCheckinRule(rule) {
			candidates = append(candidates, rule)
		}
	}

	if len(candidates) == 0 {
		return "⚠️ No check-in tasks available.", nil
	}

	outcomes, err := r.process(ctx, candidates, nil, false)
	if err != nil {
		return "", err
	}

	return renderReport(outcomes), nil
}

// process выполняет не более одного клейма на правило. Отказ платформы
// по конкретному правилу попадает в отчёт и не прерывает проход;
// транспортная ошибка прерывает.
func (r *Reconciler) process(ctx context.Context, candidates []model.LoyaltyRule, statuses map[string]model.RuleStatus, delayBetween bool) ([]model.ClaimOutcome, error) {
	outcomes := make([]model.ClaimOutcome, 0, len(candidates))

	for i, rule := range candidates {
		if st, ok := statuses[rule.ID]; ok && st.Done() {
			outcomes = append(outcomes, model.ClaimOutcome{Rule: rule, Kind: model.OutcomeAlreadyCompleted})
			continue
		}

		result, err := r.client.ClaimRule(ctx, rule.ID)
		if err != nil {
			return nil, fmt.Errorf("claim rule %s: %w", rule.ID, err)
		}

		if result.Success {
			outcomes = append(outcomes, model.ClaimOutcome{Rule: rule, Kind: model.OutcomeClaimed, Reward: rule.Amount})
			r.logger.Info("rule claimed", zap.String("rule", rule.ID), zap.Float64("reward", rule.Amount))
		} else {
			outcomes = append(outcomes, model.ClaimOutcome{Rule: rule, Kind: model.OutcomeFailed, Reason: result.Reason})
			r.logger.Warn("rule claim rejected", zap.String("rule", rule.ID), zap.String("reason", result.Reason))
		}

		if delayBetween && i < len(candidates)-1 {
			if err := sleep(ctx, r.delay); err != nil {
				return nil, err
			}
		}
	}

	return outcomes, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isCheckinRule определяет правило чек-ина по тегу типа, независимо
// от способа клейма.
func isCheckinRule(rule model.LoyaltyRule) bool {
	switch rule.Type {
	case "check_in", "daily_check_in":
		return true
	}
	return strings.Contains(strings.ToLower(rule.ID), "check")
}

func renderReport(outcomes []model.ClaimOutcome) string {
	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		name := o.Rule.Name
		if name == "" {
			name = o.Rule.ID
		}

		switch o.Kind {
		case model.OutcomeAlreadyCompleted:
			lines = append(lines, fmt.Sprintf("⏭️ %s: Already completed", name))
		case model.OutcomeClaimed:
			lines = append(lines, fmt.Sprintf("✅ %s: Completed (+%s)", name, strconv.FormatFloat(o.Reward, 'f', -1, 64)))
		case model.OutcomeFailed:
			lines = append(lines, fmt.Sprintf("❌ %s: %s", name, o.Reason))
		}
	}
	return strings.Join(lines, "\n")
}
