// Package bot is the Telegram front-end: it parses commands, routes
// inline-keyboard callbacks and renders engine directives. All league
// decisions live in the engine; the bot only translates.
package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cvr-league/config"
	"cvr-league/internal/authz"
	"cvr-league/internal/engine"
	"cvr-league/internal/identity"
	"cvr-league/internal/matches"
	"cvr-league/internal/platform"
	"cvr-league/internal/roster"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const tagLookupTimeout = 3 * time.Second

type Bot struct {
	API      *tgbotapi.BotAPI
	Config   *config.Config
	Store    roster.Store
	Engine   *engine.Engine
	Matches  *matches.Service
	Identity *identity.Resolver
	Platform *platform.Client
	Policy   authz.Policy
	Log      *zap.SugaredLogger

	// Per-user conversation state (e.g. a pending deny reason).
	// Handlers run concurrently, so access goes through the mutex.
	mu         sync.Mutex
	userStates map[int64]string
	tempData   map[int64]map[string]string
}

func New(cfg *config.Config, store roster.Store, eng *engine.Engine, msvc *matches.Service,
	ident *identity.Resolver, plat *platform.Client, policy authz.Policy, log *zap.SugaredLogger) (*Bot, error) {

	api, err := tgbotapi.NewBotAPI(cfg.TgApiToken)
	if err != nil {
		return nil, err
	}

	return &Bot{
		API:        api,
		Config:     cfg,
		Store:      store,
		Engine:     eng,
		Matches:    msvc,
		Identity:   ident,
		Platform:   plat,
		Policy:     policy,
		Log:        log,
		userStates: make(map[int64]string),
		tempData:   make(map[int64]map[string]string),
	}, nil
}

// Run blocks on the update loop.
func (b *Bot) Run() {
	b.Log.Infow("bot authorized", "account", b.API.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.API.GetUpdatesChan(u)

	for update := range updates {
		if update.Message != nil {
			go b.handleMessage(update.Message)
		} else if update.CallbackQuery != nil {
			go b.handleCallbackQuery(update.CallbackQuery)
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if state, ok := b.getState(msg.From.ID); ok {
		b.handleStateMessage(msg, state)
		return
	}
	b.processCommand(msg)
}

func (b *Bot) handleStateMessage(msg *tgbotapi.Message, state string) {
	switch state {
	case "deny_reason":
		b.handleDenyReason(msg)
	default:
		b.clearState(msg.From.ID)
		b.processCommand(msg)
	}
}

func (b *Bot) processCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendStartMessage(msg.Chat.ID)
	case "team_add":
		b.handleTeamAdd(msg)
	case "team_list":
		b.handleTeamList(msg)
	case "roster":
		b.handleRoster(msg)
	case "player":
		b.handlePlayer(msg)
	case "tr_add":
		b.handleTrAdd(msg)
	case "tr_remove":
		b.createTx(msg, "REMOVE", authz.RolePlayer)
	case "tr_transfer":
		b.createTx(msg, "TRANSFER", "")
	case "match_create":
		b.handleMatchCreate(msg)
	case "match_close":
		b.handleMatchClose(msg)
	case "result_post":
		b.handleResultPost(msg)
	case "match_list":
		b.handleMatchList(msg)
	case "":
		// plain text outside a conversation state is ignored
	default:
		b.sendMessage(msg.Chat.ID, "Unknown command. Try /start.")
	}
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	data := query.Data
	switch {
	case strings.HasPrefix(data, "tx_accept:"):
		b.handleTxAccept(query, strings.TrimPrefix(data, "tx_accept:"))
	case strings.HasPrefix(data, "tx_deny:"):
		b.handleTxDeny(query, strings.TrimPrefix(data, "tx_deny:"))
	default:
		b.answer(query, "")
	}
}

// memberTags reads the actor's platform role tags; a failed lookup
// degrades to no tags rather than blocking the command.
func (b *Bot) memberTags(userID int64) []string {
	ctx, cancel := context.WithTimeout(context.Background(), tagLookupTimeout)
	defer cancel()

	tags, err := b.Platform.MemberTags(ctx, userID)
	if err != nil {
		b.Log.Warnw("member tag lookup failed", "user", userID, "error", err)
		return nil
	}
	return tags
}

func (b *Bot) sendStartMessage(chatID int64) {
	message := `Welcome to the CVR league bot!

Roster:
/roster <team> - show a team's roster
/player - show league info (reply to the player)
/team_list - list registered teams

Transactions (Captain/Vice Captain):
/tr_add [role] - add the player you reply to into YOUR team
/tr_remove - remove the player you reply to (becomes Free Agent)
/tr_transfer - transfer the player you reply to into YOUR team (player must accept)

Matches:
/match_list - list recent matches
/result_post <match_id> <a> <b> - post a result (Referee/Media/Admin)

Admin:
/team_add <name> | <role tag> - register a team (reply to the captain)
/match_create <team A> | <team B> | <best of> - schedule a match
/match_close <match_id> - close a match`
	b.sendMessage(chatID, message)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.API.Send(msg); err != nil {
		b.Log.Warnw("send message failed", "chat", chatID, "error", err)
	}
}

// answer acknowledges a callback so the button stops spinning; note
// may carry a short user-facing result.
func (b *Bot) answer(query *tgbotapi.CallbackQuery, note string) {
	callback := tgbotapi.NewCallback(query.ID, note)
	if _, err := b.API.Request(callback); err != nil {
		b.Log.Warnw("callback answer failed", "error", err)
	}
}

func (b *Bot) getState(userID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.userStates[userID]
	return state, ok
}

func (b *Bot) setState(userID int64, state string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userStates[userID] = state
}

func (b *Bot) clearState(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.userStates, userID)
	delete(b.tempData, userID)
}

func (b *Bot) setTemp(userID int64, key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tempData[userID] == nil {
		b.tempData[userID] = make(map[string]string)
	}
	b.tempData[userID][key] = value
}

func (b *Bot) getTemp(userID int64, key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tempData[userID][key]
}

// userMessage maps engine failures to what the member sees.
func userMessage(err error) string {
	switch {
	case errors.Is(err, engine.ErrAwaitingPlayer):
		return "Waiting for the player to accept first (0/2)."
	case errors.Is(err, engine.ErrAwaitingStaff):
		return "Only the Transaction Team can finalize the transfer (1/2)."
	case errors.Is(err, engine.ErrNotYourTurn):
		return "It's not your turn to act on this transaction."
	case errors.Is(err, engine.ErrUnauthorized):
		return "You don't have permission to do that."
	case errors.Is(err, engine.ErrInvalidState):
		return "This transaction is no longer pending."
	case errors.Is(err, engine.ErrTeamNotResolved):
		return "Could not identify your team. Check that it was registered with /team_add and that you carry its tag."
	case errors.Is(err, engine.ErrNotYourPlayer):
		return "You can only remove players from YOUR team."
	case errors.Is(err, engine.ErrDuplicateTeam):
		return "A team with that name already exists."
	case errors.Is(err, engine.ErrInvalidReason):
		return "A denial reason of 1-120 characters is required."
	case errors.Is(err, matches.ErrMatchNotFound):
		return "Match ID not found."
	default:
		return "Something went wrong. Try again later."
	}
}
