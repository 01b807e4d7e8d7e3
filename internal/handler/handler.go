// Package handler содержит HTTP-обработчики API квест-бота.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/questbot-system/internal/credential"
	"github.com/mmeshcher/questbot-system/internal/model"
	"github.com/mmeshcher/questbot-system/internal/repository"
)

// Service определяет операции бота, используемые HTTP-обработчиками.
type Service interface {
	StatusReport(ctx context.Context, cred model.Credential) (string, error)
	PointsReport(ctx context.Context, cred model.Credential) (string, error)
	TaskList(ctx context.Context, cred model.Credential) (string, error)
	CompleteTasks(ctx context.Context, cred model.Credential) (string, error)
	DailyCheckin(ctx context.Context, cred model.Credential) (string, error)
}

// Handler реализует HTTP-обработчики API квест-бота.
type Handler struct {
	service Service
	store   repository.SessionStore
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, store repository.SessionStore, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		store:   store,
		logger:  logger,
	}
}

type createSessionRequest struct {
	ID string `json:"id"`
}

// CreateSession регистрирует новую пользовательскую сессию бота.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.store.Create(r.Context(), req.ID); err != nil {
		if errors.Is(err, repository.ErrSessionExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("create session error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

type setCredentialRequest struct {
	Cookie     string `json:"cookie"`
	PrivateKey string `json:"privateKey"`
}

// SetCredential сохраняет учётные данные сессии: cookie или ключ кошелька.
func (h *Handler) SetCredential(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.session(w, r)
	if !ok {
		return
	}

	var req setCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// Валидация до сохранения: битый ключ не должен попасть в хранилище.
	cred, err := credential.Resolve(req.Cookie, req.PrivateKey)
	if err != nil || cred.Kind == model.CredentialNone {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rec.Cookie = req.Cookie
	rec.PrivateKey = req.PrivateKey

	if err := h.store.Put(r.Context(), rec); err != nil {
		h.logger.Error("save credential error", zap.Error(err), zap.String("session", rec.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type autoModeRequest struct {
	Enabled bool `json:"enabled"`
}

// SetAutoMode включает или выключает автоматический режим сессии.
func (h *Handler) SetAutoMode(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.session(w, r)
	if !ok {
		return
	}

	var req autoModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rec.AutoMode = req.Enabled

	if err := h.store.Put(r.Context(), rec); err != nil {
		h.logger.Error("save auto mode error", zap.Error(err), zap.String("session", rec.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Status возвращает текстовый отчёт о состоянии аккаунта.
// Состояние автоматического режима хранится в записи сессии,
// поэтому строка о нём добавляется здесь, а не в сервисе.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.reportWithRecord(w, r, func(ctx context.Context, rec *model.SessionRecord, cred model.Credential) (string, error) {
		text, err := h.service.StatusReport(ctx, cred)
		if err != nil {
			return "", err
		}

		mode := "off"
		if rec.AutoMode {
			mode = "on"
		}
		return text + "\n🔁 Auto mode: " + mode, nil
	})
}

// Points возвращает текстовый отчёт о балансе баллов.
func (h *Handler) Points(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, h.service.PointsReport)
}

// Tasks возвращает перечень заданий.
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, h.service.TaskList)
}

// CompleteTasks запускает проход по ручным заданиям.
func (h *Handler) CompleteTasks(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, h.service.CompleteTasks)
}

// DailyCheckin запускает ежедневный чек-ин.
func (h *Handler) DailyCheckin(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, h.service.DailyCheckin)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request, op func(context.Context, model.Credential) (string, error)) {
	h.reportWithRecord(w, r, func(ctx context.Context, _ *model.SessionRecord, cred model.Credential) (string, error) {
		return op(ctx, cred)
	})
}

func (h *Handler) reportWithRecord(w http.ResponseWriter, r *http.Request, op func(context.Context, *model.SessionRecord, model.Credential) (string, error)) {
	rec, ok := h.session(w, r)
	if !ok {
		return
	}

	cred, err := credential.Resolve(rec.Cookie, rec.PrivateKey)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	text, err := op(r.Context(), rec, cred)
	if err != nil {
		h.logger.Error("operation error", zap.Error(err), zap.String("session", rec.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*model.SessionRecord, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, false
	}

	rec, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return nil, false
		}
		h.logger.Error("load session error", zap.Error(err), zap.String("session", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}

	return rec, true
}
