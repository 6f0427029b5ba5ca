package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"miniarima/internal/domain"
	"miniarima/internal/entitlement"
	"miniarima/internal/infra"
	"miniarima/internal/providers/openai"
	"miniarima/internal/quota"
)

// transcriptWindow bounds how many turns an active chat re-submits as
// context.
const transcriptWindow = 10

// Clear tokens accepted by the instruction and temperature sub-states.
var clearTokens = map[string]bool{"-": true, "сбросить": true}

// Provider is the slice of the provider client the engine needs.
type Provider interface {
	CompleteChat(ctx context.Context, model string, messages []openai.Message, temperature float64, class openai.TimeoutClass) (string, error)
	GenerateImage(ctx context.Context, model, prompt string, width, height int, format string, class openai.TimeoutClass) ([]string, error)
}

// Enhancer runs one enhanced-mode (fan-out/arbitration) round.
type Enhancer interface {
	RunEnhanced(ctx context.Context, prompt string, userID int64) (string, error)
}

// Availability is the advisory model-status view used when rendering
// model menus. It gates nothing.
type Availability interface {
	IsAvailable(model string) bool
}

// Engine drives one conversation per user: captcha gate, menus, plain
// chat, settings capture, image generation and enhanced mode. A session's
// transitions run sequentially; outbound provider calls block only that
// session.
type Engine struct {
	cfg          *infra.Config
	transport    Transport
	entitlements *entitlement.Service
	quota        *quota.Service
	provider     Provider
	enhancer     Enhancer
	availability Availability
	sessions     *Store
	logger       zerolog.Logger
	captchas     []Captcha
	intn         func(int) int
}

// NewEngine wires the state machine with its collaborators.
func NewEngine(
	cfg *infra.Config,
	transport Transport,
	entitlements *entitlement.Service,
	quotas *quota.Service,
	provider Provider,
	enhancer Enhancer,
	availability Availability,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		cfg:          cfg,
		transport:    transport,
		entitlements: entitlements,
		quota:        quotas,
		provider:     provider,
		enhancer:     enhancer,
		availability: availability,
		sessions:     NewStore(),
		logger:       logger,
		captchas:     DefaultCaptchaPool,
		intn:         rand.IntN,
	}
}

// HandleCommand processes an inbound command event.
func (e *Engine) HandleCommand(ctx context.Context, userID int64, handle string, cmd Command) {
	e.sessions.Do(userID, func(current DialogueState) DialogueState {
		account, err := e.register(ctx, userID, handle)
		if err != nil {
			return e.internalError(ctx, userID, current, err)
		}

		switch cmd {
		case CommandStop:
			switch current.(type) {
			case ActiveChat, EnhancedChat, AwaitingImageModel, AwaitingImagePrompt:
				return e.showMainMenu(ctx, userID)
			default:
				e.logger.Debug().Int64("user_id", userID).Msg("stop command outside an active chat")
				e.send(ctx, userID, "Сейчас нет активного диалога.", nil)
				return current
			}
		case CommandStart, CommandMenu:
			if !account.Verified {
				return e.issueCaptcha(ctx, userID, current)
			}
			if e.cfg.IsAdmin(userID) && account.Tier != domain.TierMax {
				expiry := time.Now().AddDate(0, 0, 30)
				if err := e.entitlements.GrantTier(ctx, userID, domain.TierMax, &expiry); err != nil {
					return e.internalError(ctx, userID, current, err)
				}
			}
			return e.showMainMenu(ctx, userID)
		default:
			e.send(ctx, userID, "Неизвестная команда. Используйте /menu.", nil)
			return current
		}
	})
}

// HandleText processes a free-text message, dispatching on the current
// dialogue state.
func (e *Engine) HandleText(ctx context.Context, userID int64, handle, text string) {
	e.sessions.Do(userID, func(current DialogueState) DialogueState {
		account, err := e.register(ctx, userID, handle)
		if err != nil {
			return e.internalError(ctx, userID, current, err)
		}

		switch st := current.(type) {
		case AwaitingCaptcha:
			return e.processCaptchaAnswer(ctx, userID, st, text)
		case AwaitingInstruction:
			return e.processInstruction(ctx, userID, st, text)
		case AwaitingTemperature:
			return e.processTemperature(ctx, userID, st, text)
		case AwaitingImageModel:
			e.send(ctx, userID, "Выберите модель из меню.", e.imageModelActions())
			return st
		case AwaitingImagePrompt:
			return e.processImagePrompt(ctx, userID, st, text)
		case ActiveChat:
			return e.processChatMessage(ctx, userID, account, st, text)
		case EnhancedChat:
			return e.processEnhancedMessage(ctx, userID, st, text)
		default:
			if !account.Verified {
				return e.issueCaptcha(ctx, userID, current)
			}
			// A stray message is answered with a hint; the menu sub-state
			// the user is in stays as it was.
			e.send(ctx, userID, "Сначала начните чат или выберите модель через меню.", e.mainMenuActions(account))
			return current
		}
	})
}

// HandleAction processes a menu-selection event carrying an opaque token.
func (e *Engine) HandleAction(ctx context.Context, userID int64, token string) {
	e.sessions.Do(userID, func(current DialogueState) DialogueState {
		account, err := e.entitlements.Resolve(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				e.send(ctx, userID, "Начните с команды /start.", nil)
				return current
			}
			return e.internalError(ctx, userID, current, err)
		}
		if !account.Verified {
			return e.issueCaptcha(ctx, userID, current)
		}

		action, arg, _ := strings.Cut(token, ":")
		switch action {
		case "menu":
			return e.handleMenuAction(ctx, userID, account, current, arg)
		case "category":
			e.send(ctx, userID, fmt.Sprintf("Модели в категории «%s»:", arg), e.modelActions(account, arg))
			return current
		case "model":
			return e.selectChatModel(ctx, userID, current, arg)
		case "imagemodel":
			return e.selectImageModel(ctx, userID, current, arg)
		case "chat":
			switch arg {
			case "start":
				return e.startChat(ctx, userID, account, current)
			case "new":
				if chat, ok := current.(ActiveChat); ok {
					e.send(ctx, userID, "Начат новый диалог. Контекст очищен.", nil)
					chat.Transcript = nil
					return chat
				}
				e.send(ctx, userID, "Сейчас нет активного диалога.", nil)
				return current
			}
			return current
		case "enhanced":
			if arg == "activate" {
				return e.activateEnhanced(ctx, userID, current)
			}
			return current
		default:
			e.logger.Debug().Int64("user_id", userID).Str("token", token).Msg("unknown action token")
			return current
		}
	})
}

func (e *Engine) handleMenuAction(ctx context.Context, userID int64, account *domain.Account, current DialogueState, arg string) DialogueState {
	switch arg {
	case "back":
		return e.showMainMenu(ctx, userID)
	case "models":
		e.send(ctx, userID, "Выберите категорию:", e.categoryActions(account))
		return current
	case "settings":
		return e.showSettings(ctx, userID)
	case "instruction":
		ref := e.send(ctx, userID, "Отправьте текст вашей инструкции (до 1000 символов). Чтобы удалить инструкцию, отправьте «-».", nil)
		return AwaitingInstruction{Prompt: ref}
	case "temperature":
		ref := e.send(ctx, userID, "Отправьте значение температуры (число от 0.0 до 2.0). Чтобы сбросить, отправьте «-».", nil)
		return AwaitingTemperature{Prompt: ref}
	case "image":
		if account.Tier < domain.TierPremium && !e.cfg.IsAdmin(userID) {
			e.send(ctx, userID, "Генерация изображений доступна только для подписчиков Premium и Max.", nil)
			return current
		}
		e.send(ctx, userID, "Выберите модель для генерации изображения:", e.imageModelActions())
		return AwaitingImageModel{}
	case "enhanced":
		return e.showEnhancedIntro(ctx, userID, account, current)
	case "help":
		e.send(ctx, userID, e.helpText(), e.mainMenuActions(account))
		return current
	default:
		return current
	}
}

// --- captcha gate ---

func (e *Engine) issueCaptcha(ctx context.Context, userID int64, current DialogueState) DialogueState {
	previous := ""
	if st, ok := current.(AwaitingCaptcha); ok {
		previous = st.Question
		if st.Prompt != "" {
			_ = e.transport.DeleteMessage(ctx, userID, st.Prompt)
		}
	}
	challenge := pickCaptcha(e.captchas, previous, e.intn)
	ref := e.send(ctx, userID,
		fmt.Sprintf("Чтобы начать, пожалуйста, решите простую задачу:\n%s\n\nНапишите ответ в чат.", challenge.Question), nil)
	e.logger.Info().Int64("user_id", userID).Msg("captcha challenge issued")
	return AwaitingCaptcha{
		Question: challenge.Question,
		Answer:   strings.ToLower(strings.TrimSpace(challenge.Answer)),
		Prompt:   ref,
	}
}

func (e *Engine) processCaptchaAnswer(ctx context.Context, userID int64, st AwaitingCaptcha, text string) DialogueState {
	if !captchaMatches(st.Answer, text) {
		e.logger.Info().Int64("user_id", userID).Msg("captcha failed")
		e.send(ctx, userID, "Неверно. Попробуйте еще раз.", nil)
		return e.issueCaptcha(ctx, userID, st)
	}
	if err := e.entitlements.MarkVerified(ctx, userID); err != nil {
		return e.internalError(ctx, userID, st, err)
	}
	e.logger.Info().Int64("user_id", userID).Msg("captcha passed, account verified")
	e.send(ctx, userID, "Верно! Добро пожаловать.", nil)
	return e.showMainMenu(ctx, userID)
}

// --- menus ---

func (e *Engine) showMainMenu(ctx context.Context, userID int64) DialogueState {
	// Menu transitions always re-read entitlement data; transcripts and
	// stale session copies are never used for display.
	account, err := e.entitlements.Resolve(ctx, userID)
	if err != nil {
		return e.internalError(ctx, userID, MainMenu{}, err)
	}
	used, limit, err := e.quota.Remaining(ctx, userID, domain.UsageNormal)
	if err != nil {
		return e.internalError(ctx, userID, MainMenu{}, err)
	}

	var b strings.Builder
	b.WriteString("Главное меню\n\n")
	fmt.Fprintf(&b, "Подписка: %s\n", account.Tier)
	if account.TierExpiry != nil {
		fmt.Fprintf(&b, "Действует до: %s\n", account.TierExpiry.In(e.cfg.ReportLocation).Format("02.01.2006"))
	}
	fmt.Fprintf(&b, "Запросы сегодня: %d / %d", used, limit)

	e.send(ctx, userID, b.String(), e.mainMenuActions(account))
	return MainMenu{}
}

func (e *Engine) showSettings(ctx context.Context, userID int64) DialogueState {
	account, err := e.entitlements.Resolve(ctx, userID)
	if err != nil {
		return e.internalError(ctx, userID, SettingsMenu{}, err)
	}
	instruction := account.Instruction
	if instruction == "" {
		instruction = "не задана"
	}
	temperature := e.cfg.DefaultTemperature
	if account.Temperature != nil {
		temperature = *account.Temperature
	}
	text := fmt.Sprintf(
		"Настройки\n\nТекущая инструкция: %s\nТекущая температура: %.1f\n\nИнструкция направляет модель в каждом запросе. Температура (от 0.0 до 2.0) контролирует случайность ответа.",
		instruction, temperature)
	e.send(ctx, userID, text, []Action{
		{Label: "Инструкция", Token: "menu:instruction"},
		{Label: "Температура", Token: "menu:temperature"},
		{Label: "Назад", Token: "menu:back"},
	})
	return SettingsMenu{}
}

func (e *Engine) showEnhancedIntro(ctx context.Context, userID int64, account *domain.Account, current DialogueState) DialogueState {
	if account.Tier != domain.TierMax && !e.cfg.IsAdmin(userID) {
		e.send(ctx, userID, "Max Mode доступен только для подписчиков уровня Max.", nil)
		return current
	}
	used, limit, err := e.quota.Remaining(ctx, userID, domain.UsageEnhanced)
	if err != nil {
		return e.internalError(ctx, userID, current, err)
	}
	var b strings.Builder
	b.WriteString("Режим Max Mode\n\nВаш запрос обрабатывается сразу несколькими моделями, а итог сводит модель-арбитр.\n\nМодели-участники:\n")
	for _, m := range e.cfg.Participants {
		fmt.Fprintf(&b, "  •  %s\n", m)
	}
	fmt.Fprintf(&b, "\nЛимит: %d / %d запросов в день.", used, limit)
	e.send(ctx, userID, b.String(), []Action{
		{Label: "Активировать", Token: "enhanced:activate"},
		{Label: "Назад", Token: "menu:back"},
	})
	return current
}

func (e *Engine) activateEnhanced(ctx context.Context, userID int64, current DialogueState) DialogueState {
	if err := e.quota.Authorize(ctx, userID, domain.UsageEnhanced); err != nil {
		return e.denyOrFail(ctx, userID, current, err)
	}
	e.send(ctx, userID, "Max Mode активирован. Отправьте ваш запрос.\n\nДля выхода используйте /menu.", nil)
	return EnhancedChat{}
}

// --- model selection ---

// startChat enters a dialogue with the user's last-used model, falling
// back to the configured default for first-time chats.
func (e *Engine) startChat(ctx context.Context, userID int64, account *domain.Account, current DialogueState) DialogueState {
	if err := e.quota.Authorize(ctx, userID, domain.UsageNormal); err != nil {
		return e.denyOrFail(ctx, userID, current, err)
	}
	model := account.LastChatModel
	if model == "" {
		model = e.cfg.DefaultChatModel
	}
	e.send(ctx, userID,
		fmt.Sprintf("Диалог начат. Модель: %s\nОтправьте ваш запрос.\n\nДля вызова меню используйте /menu", model), nil)
	return ActiveChat{Model: model}
}

func (e *Engine) selectChatModel(ctx context.Context, userID int64, current DialogueState, model string) DialogueState {
	if err := e.quota.Authorize(ctx, userID, domain.UsageNormal); err != nil {
		return e.denyOrFail(ctx, userID, current, err)
	}
	if err := e.entitlements.SetLastChatModel(ctx, userID, model); err != nil {
		return e.internalError(ctx, userID, current, err)
	}
	e.send(ctx, userID,
		fmt.Sprintf("Выбрана модель: %s\nОтправьте ваш запрос.\n\nДля вызова меню используйте /menu", model), nil)
	return ActiveChat{Model: model}
}

func (e *Engine) selectImageModel(ctx context.Context, userID int64, current DialogueState, model string) DialogueState {
	if _, ok := current.(AwaitingImageModel); !ok {
		e.send(ctx, userID, "Сначала откройте меню генерации изображений.", nil)
		return current
	}
	if err := e.entitlements.SetLastImageModel(ctx, userID, model); err != nil {
		return e.internalError(ctx, userID, current, err)
	}
	e.send(ctx, userID, fmt.Sprintf("Выбрана модель: %s.\n\nТеперь отправьте текстовый промпт.", model), nil)
	return AwaitingImagePrompt{Model: model}
}

// --- settings capture ---

func (e *Engine) processInstruction(ctx context.Context, userID int64, st AwaitingInstruction, text string) DialogueState {
	input := strings.TrimSpace(text)
	if len([]rune(input)) > 1000 {
		// Validation failures re-prompt in place and persist nothing.
		e.send(ctx, userID, "Длина инструкции не должна превышать 1000 символов. Попробуйте снова.", nil)
		return st
	}
	var value *string
	confirmation := "Ваша персональная инструкция удалена."
	if input != "" && !clearTokens[strings.ToLower(input)] {
		value = &input
		confirmation = "Ваша персональная инструкция обновлена."
	}
	if err := e.entitlements.SetInstruction(ctx, userID, value); err != nil {
		return e.internalError(ctx, userID, st, err)
	}
	e.send(ctx, userID, confirmation, nil)
	return e.showMainMenu(ctx, userID)
}

func (e *Engine) processTemperature(ctx context.Context, userID int64, st AwaitingTemperature, text string) DialogueState {
	input := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")

	if input == "" || clearTokens[strings.ToLower(input)] {
		if err := e.entitlements.SetTemperature(ctx, userID, nil); err != nil {
			return e.internalError(ctx, userID, st, err)
		}
		e.send(ctx, userID,
			fmt.Sprintf("Температура сброшена к значению по умолчанию (%.1f).", e.cfg.DefaultTemperature), nil)
		return e.showMainMenu(ctx, userID)
	}

	temperature, err := strconv.ParseFloat(input, 64)
	if err != nil {
		e.send(ctx, userID, "Пожалуйста, введите число (например, 0.7). Попробуйте снова.", nil)
		return st
	}
	if temperature < 0.0 || temperature > 2.0 {
		e.send(ctx, userID, "Температура должна быть в диапазоне от 0.0 до 2.0. Попробуйте снова.", nil)
		return st
	}
	if err := e.entitlements.SetTemperature(ctx, userID, &temperature); err != nil {
		return e.internalError(ctx, userID, st, err)
	}
	e.send(ctx, userID, fmt.Sprintf("Температура установлена на %.1f.", temperature), nil)
	return e.showMainMenu(ctx, userID)
}

// --- chat ---

func (e *Engine) processChatMessage(ctx context.Context, userID int64, account *domain.Account, st ActiveChat, text string) DialogueState {
	if err := e.quota.Authorize(ctx, userID, domain.UsageNormal); err != nil {
		return e.denyOrFail(ctx, userID, st, err)
	}

	st.Transcript = append(st.Transcript, Turn{Role: "user", Text: text})

	messages := e.buildMessages(account, st.Transcript)
	temperature := e.cfg.DefaultTemperature
	if account.Temperature != nil {
		temperature = *account.Temperature
	}

	started := time.Now()
	reply, err := e.provider.CompleteChat(ctx, st.Model, messages, temperature, openai.TimeoutChat)
	if err != nil {
		// The user's turn stays in the transcript so a resend reuses it;
		// no assistant turn is added.
		e.logger.Error().Err(err).Int64("user_id", userID).Str("model", st.Model).
			Msg("chat completion failed")
		e.send(ctx, userID,
			fmt.Sprintf("Модель %s временно недоступна. Отправьте запрос ещё раз или выберите другую модель через /menu.", st.Model), nil)
		return st
	}

	if err := e.quota.Record(ctx, userID, st.Model, domain.UsageNormal); err != nil {
		e.logger.Error().Err(err).Int64("user_id", userID).Msg("record usage failed")
	}

	if strings.TrimSpace(reply) == "" {
		// Empty success: quota is consumed, but an empty assistant turn
		// would poison the transcript.
		e.send(ctx, userID,
			fmt.Sprintf("Модель %s вернула пустой ответ. Попробуйте переформулировать запрос.", st.Model), nil)
		return st
	}

	st.Transcript = append(st.Transcript, Turn{Role: "assistant", Text: reply})
	if len(st.Transcript) > transcriptWindow {
		st.Transcript = st.Transcript[len(st.Transcript)-transcriptWindow:]
	}

	footer := fmt.Sprintf("\n\n---\nМодель: %s | t: %.1f | Время: %.2f сек.",
		st.Model, temperature, time.Since(started).Seconds())
	e.send(ctx, userID, reply+footer, nil)
	return st
}

func (e *Engine) processEnhancedMessage(ctx context.Context, userID int64, st EnhancedChat, text string) DialogueState {
	if err := e.quota.Authorize(ctx, userID, domain.UsageEnhanced); err != nil {
		return e.denyOrFail(ctx, userID, st, err)
	}

	started := time.Now()
	reply, err := e.enhancer.RunEnhanced(ctx, text, userID)
	switch {
	case errors.Is(err, domain.ErrAllParticipantsFailed):
		e.send(ctx, userID, "К сожалению, все модели-участники не смогли дать ответ. Попробуйте позже.", nil)
		return st
	case errors.Is(err, domain.ErrArbiterFailed):
		e.send(ctx, userID, "Модель-арбитр не смогла обработать ответы. Попробуйте позже.", nil)
		return st
	case err != nil:
		return e.internalError(ctx, userID, st, err)
	}

	if err := e.quota.Record(ctx, userID, "max_mode_ensemble", domain.UsageEnhanced); err != nil {
		e.logger.Error().Err(err).Int64("user_id", userID).Msg("record usage failed")
	}

	footer := fmt.Sprintf("\n\n--- Max Mode ---\nУчастники: %s\nАрбитр: %s\nВремя: %.2f сек.",
		strings.Join(e.cfg.Participants, ", "), e.cfg.Arbiter, time.Since(started).Seconds())
	e.send(ctx, userID, reply+footer, nil)
	return st
}

func (e *Engine) processImagePrompt(ctx context.Context, userID int64, st AwaitingImagePrompt, text string) DialogueState {
	if err := e.quota.Authorize(ctx, userID, domain.UsageNormal); err != nil {
		return e.denyOrFail(ctx, userID, st, err)
	}

	started := time.Now()
	urls, err := e.provider.GenerateImage(ctx, st.Model, text, 1024, 1024, "url", openai.TimeoutImage)
	if err != nil {
		e.logger.Error().Err(err).Int64("user_id", userID).Str("model", st.Model).
			Msg("image generation failed")
		e.send(ctx, userID, "Произошла ошибка при генерации. Попробуйте другую модель или повторите позже.", nil)
		return e.showMainMenu(ctx, userID)
	}
	if len(urls) == 0 {
		e.send(ctx, userID, "Модель не вернула изображение. Попробуйте другой промпт.", nil)
		return e.showMainMenu(ctx, userID)
	}

	if err := e.quota.Record(ctx, userID, st.Model, domain.UsageNormal); err != nil {
		e.logger.Error().Err(err).Int64("user_id", userID).Msg("record usage failed")
	}

	caption := fmt.Sprintf("Готово!\n\nМодель: %s\nВремя: %.2f сек.\nПромпт: %s",
		st.Model, time.Since(started).Seconds(), text)
	if err := e.transport.SendImage(ctx, userID, urls[0], caption); err != nil {
		e.logger.Error().Err(err).Int64("user_id", userID).Msg("send image failed")
	}
	return e.showMainMenu(ctx, userID)
}

// --- helpers ---

func (e *Engine) register(ctx context.Context, userID int64, handle string) (*domain.Account, error) {
	account, err := e.entitlements.Resolve(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		e.logger.Info().Int64("user_id", userID).Str("handle", handle).Msg("new user registered")
		return e.entitlements.Register(ctx, userID, handle)
	}
	return account, err
}

func (e *Engine) buildMessages(account *domain.Account, transcript []Turn) []openai.Message {
	messages := []openai.Message{{Role: "system", Content: e.cfg.GlobalSystemPrompt}}
	if account.Instruction != "" {
		messages = append(messages, openai.Message{
			Role:    "system",
			Content: "Дополнительная инструкция от пользователя: " + account.Instruction,
		})
	}
	for _, turn := range transcript {
		messages = append(messages, openai.Message{Role: turn.Role, Content: turn.Text})
	}
	return messages
}

func (e *Engine) mainMenuActions(account *domain.Account) []Action {
	actions := []Action{
		{Label: "Начать чат", Token: "chat:start"},
		{Label: "Модели", Token: "menu:models"},
		{Label: "Настройки", Token: "menu:settings"},
		{Label: "Справка", Token: "menu:help"},
	}
	if account.Tier >= domain.TierPremium {
		actions = append(actions, Action{Label: "Изображения", Token: "menu:image"})
	}
	if account.Tier == domain.TierMax {
		actions = append(actions, Action{Label: "Max Mode", Token: "menu:enhanced"})
	}
	return actions
}

func (e *Engine) categoryActions(account *domain.Account) []Action {
	accessible := map[string]bool{}
	for _, m := range e.cfg.AccessibleModels(account.Tier) {
		accessible[m] = true
	}
	var actions []Action
	for category, models := range e.cfg.ModelCategories {
		for _, m := range models {
			if accessible[m] {
				actions = append(actions, Action{Label: category, Token: "category:" + category})
				break
			}
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].Label < actions[j].Label })
	actions = append(actions, Action{Label: "Назад", Token: "menu:back"})
	return actions
}

func (e *Engine) modelActions(account *domain.Account, category string) []Action {
	accessible := map[string]bool{}
	for _, m := range e.cfg.AccessibleModels(account.Tier) {
		accessible[m] = true
	}
	var actions []Action
	for _, m := range e.cfg.ModelCategories[category] {
		if !accessible[m] {
			continue
		}
		label := m
		if !e.availability.IsAvailable(m) {
			label = m + " ⚠️"
		}
		actions = append(actions, Action{Label: label, Token: "model:" + m})
	}
	actions = append(actions, Action{Label: "Назад", Token: "menu:models"})
	return actions
}

func (e *Engine) imageModelActions() []Action {
	var actions []Action
	for _, m := range e.cfg.ImageModels {
		label := m
		if !e.availability.IsAvailable(m) {
			label = m + " ⚠️"
		}
		actions = append(actions, Action{Label: label, Token: "imagemodel:" + m})
	}
	actions = append(actions, Action{Label: "Назад", Token: "menu:back"})
	return actions
}

func (e *Engine) helpText() string {
	var b strings.Builder
	b.WriteString("Справка\n\nКоманды:\n/start - главное меню\n/menu - меню в любой момент\n\nЛимиты запросов в день:\n")
	fmt.Fprintf(&b, " • Free: %d (или %d с бонусом)\n",
		e.cfg.Limits[domain.TierFree].Daily, e.cfg.BonusDaily)
	fmt.Fprintf(&b, " • Standard: %d\n", e.cfg.Limits[domain.TierStandard].Daily)
	fmt.Fprintf(&b, " • Premium: %d\n", e.cfg.Limits[domain.TierPremium].Daily)
	fmt.Fprintf(&b, " • Max: %d обычных + %d Max Mode",
		e.cfg.Limits[domain.TierMax].Daily, e.cfg.Limits[domain.TierMax].Enhanced)
	return b.String()
}

// denyOrFail turns a quota denial into a plain user-facing message and
// anything else into an internal error.
func (e *Engine) denyOrFail(ctx context.Context, userID int64, current DialogueState, err error) DialogueState {
	if errors.Is(err, domain.ErrUnauthorized) {
		e.logger.Info().Err(err).Int64("user_id", userID).Msg("request denied")
		e.send(ctx, userID,
			"Достигнут дневной лимит запросов или доступ ограничен. Попробуйте завтра или рассмотрите улучшение подписки.", nil)
		return current
	}
	if errors.Is(err, domain.ErrNotFound) {
		e.send(ctx, userID, "Начните с команды /start.", nil)
		return current
	}
	return e.internalError(ctx, userID, current, err)
}

// internalError logs the fault with full context and shows the user a
// generic retry message; it never leaks details.
func (e *Engine) internalError(ctx context.Context, userID int64, current DialogueState, err error) DialogueState {
	e.logger.Error().Err(err).Int64("user_id", userID).Msg("internal error while handling event")
	e.send(ctx, userID, "Произошла внутренняя ошибка. Попробуйте позже.", nil)
	return current
}

func (e *Engine) send(ctx context.Context, userID int64, text string, menu []Action) MessageRef {
	ref, err := e.transport.SendText(ctx, userID, text, menu)
	if err != nil {
		e.logger.Error().Err(err).Int64("user_id", userID).Msg("send message failed")
	}
	return ref
}
