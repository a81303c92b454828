package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cvr-league/internal/authz"
	"cvr-league/internal/engine"
	"cvr-league/internal/models"
	"cvr-league/internal/render"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleTeamAdd registers a team: /team_add <name> | <role tag>,
// sent as a reply to the captain's message. Admin only.
func (b *Bot) handleTeamAdd(msg *tgbotapi.Message) {
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		b.sendMessage(msg.Chat.ID, "Reply to the captain's message: /team_add <name> | <role tag>")
		return
	}

	parts := strings.SplitN(msg.CommandArguments(), "|", 2)
	if len(parts) != 2 {
		b.sendMessage(msg.Chat.ID, "Usage: /team_add <name> | <role tag>")
		return
	}
	name := strings.TrimSpace(parts[0])
	roleTag := strings.TrimSpace(parts[1])
	if name == "" || roleTag == "" {
		b.sendMessage(msg.Chat.ID, "Usage: /team_add <name> | <role tag>")
		return
	}

	captain := msg.ReplyToMessage.From
	team, err := b.Engine.RegisterTeam(context.Background(), msg.Chat.ID, msg.From.ID,
		name, roleTag, captain.ID, captain.String())
	if err != nil {
		b.sendMessage(msg.Chat.ID, userMessage(err))
		return
	}

	b.sendMessage(msg.Chat.ID, fmt.Sprintf("Team %s registered. Captain: %s.", team.Name, captain.String()))
}

func (b *Bot) handleTeamList(msg *tgbotapi.Message) {
	teams, err := b.Store.ListTeams(context.Background())
	if err != nil {
		b.Log.Errorw("list teams failed", "error", err)
		b.sendMessage(msg.Chat.ID, userMessage(err))
		return
	}
	if len(teams) == 0 {
		b.sendMessage(msg.Chat.ID, "No teams registered yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Registered teams:\n")
	for _, t := range teams {
		fmt.Fprintf(&sb, "• %s (%s)\n", t.Name, t.RoleTag)
	}
	b.sendMessage(msg.Chat.ID, sb.String())
}

func (b *Bot) handleRoster(msg *tgbotapi.Message) {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		b.sendMessage(msg.Chat.ID, "Usage: /roster <team name>")
		return
	}

	ctx := context.Background()
	team, err := b.Store.FindTeamByName(ctx, name)
	if err != nil {
		b.Log.Errorw("find team failed", "team", name, "error", err)
		b.sendMessage(msg.Chat.ID, userMessage(err))
		return
	}
	if team == nil {
		b.sendMessage(msg.Chat.ID, "No such team.")
		return
	}

	players, err := b.Store.ListRoster(ctx, team.ID)
	if err != nil {
		b.Log.Errorw("list roster failed", "team", team.ID, "error", err)
		b.sendMessage(msg.Chat.ID, userMessage(err))
		return
	}
	if len(players) == 0 {
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("%s has no players yet.", team.Name))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s roster:\n", team.Name)
	for _, p := range players {
		mark := ""
		if team.CaptainID != nil && p.UserID == *team.CaptainID {
			mark = " (C)"
		}
		fmt.Fprintf(&sb, "• %s%s\n", p.Username, mark)
	}
	b.sendMessage(msg.Chat.ID, sb.String())
}

// handlePlayer shows the league card of the player being replied to.
func (b *Bot) handlePlayer(msg *tgbotapi.Message) {
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		b.sendMessage(msg.Chat.ID, "Reply to the player's message with /player.")
		return
	}

	ctx := context.Background()
	target := msg.ReplyToMessage.From
	player, err := b.Store.FindPlayer(ctx, msg.Chat.ID, target.ID)
	if err != nil {
		b.Log.Errorw("find player failed", "user", target.ID, "error", err)
		b.sendMessage(msg.Chat.ID, userMessage(err))
		return
	}

	teamName := "Free Agent"
	if player != nil && player.TeamID != nil {
		if team, err := b.Store.GetTeam(ctx, *player.TeamID); err == nil && team != nil {
			teamName = team.Name
		}
	}

	text := fmt.Sprintf("%s\nTeam: %s", target.String(), teamName)
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	if profile := b.Identity.Resolve(ctx, target.UserName); profile != nil {
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("Profile", profile.ProfileURL),
			),
		)
	}
	if _, err := b.API.Send(reply); err != nil {
		b.Log.Warnw("send player card failed", "error", err)
	}
}

// handleTrAdd opens an ADD request; an optional argument picks the
// position the player is signed for, defaulting to Player.
func (b *Bot) handleTrAdd(msg *tgbotapi.Message) {
	role := strings.TrimSpace(msg.CommandArguments())
	if role == "" {
		role = authz.RolePlayer
	}
	valid := false
	for _, known := range []string{authz.RoleViceCaptain, authz.RoleCourtCaptain, authz.RolePlayer} {
		if strings.EqualFold(role, known) {
			role = known
			valid = true
			break
		}
	}
	if !valid {
		b.sendMessage(msg.Chat.ID, "Unknown role. Use Vice Captain, Court Captain or Player.")
		return
	}
	b.createTx(msg, models.ActionAdd, role)
}

func (b *Bot) createTx(msg *tgbotapi.Message, action models.TxAction, role string) {
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		b.sendMessage(msg.Chat.ID, "Reply to the player's message to open a transaction.")
		return
	}

	target := msg.ReplyToMessage.From
	if target.IsBot {
		b.sendMessage(msg.Chat.ID, "Bots don't play in this league.")
		return
	}

	req, directive, err := b.Engine.Open(context.Background(), engine.OpenParams{
		ChatID:         msg.Chat.ID,
		Requester:      msg.From.ID,
		RequesterName:  msg.From.String(),
		RequesterTags:  b.memberTags(msg.From.ID),
		TargetUserID:   target.ID,
		TargetUsername: target.String(),
		Action:         action,
		RequestedRole:  role,
	})
	if err != nil {
		b.sendMessage(msg.Chat.ID, userMessage(err))
		return
	}

	b.publishDirective(msg.Chat.ID, req, directive)
}

func (b *Bot) handleTxAccept(query *tgbotapi.CallbackQuery, rawID string) {
	requestID, err := strconv.Atoi(rawID)
	if err != nil {
		b.answer(query, "")
		return
	}

	req, directive, err := b.Engine.Accept(context.Background(), requestID,
		query.From.ID, query.From.String(), b.memberTags(query.From.ID))
	if err != nil {
		b.answer(query, userMessage(err))
		return
	}

	b.answer(query, "")
	b.editDirective(query.Message, req, directive)
}

// handleTxDeny first tries an instant deny: it succeeds only for a
// transfer target self-denying, which needs no reason. Everyone else
// gets ErrInvalidReason back and is walked through entering one.
func (b *Bot) handleTxDeny(query *tgbotapi.CallbackQuery, rawID string) {
	requestID, err := strconv.Atoi(rawID)
	if err != nil {
		b.answer(query, "")
		return
	}

	req, directive, err := b.Engine.Deny(context.Background(), requestID,
		query.From.ID, query.From.String(), b.memberTags(query.From.ID), "")
	if err == nil {
		b.answer(query, "")
		b.editDirective(query.Message, req, directive)
		return
	}
	if !errors.Is(err, engine.ErrInvalidReason) {
		b.answer(query, userMessage(err))
		return
	}

	b.setState(query.From.ID, "deny_reason")
	b.setTemp(query.From.ID, "deny_tx", rawID)
	if query.Message != nil {
		b.setTemp(query.From.ID, "deny_chat", strconv.FormatInt(query.Message.Chat.ID, 10))
		b.setTemp(query.From.ID, "deny_msg", strconv.Itoa(query.Message.MessageID))
	}
	b.answer(query, "Send the denial reason (max 120 characters).")
	if query.Message != nil {
		b.sendMessage(query.Message.Chat.ID,
			fmt.Sprintf("@%s, reply with the denial reason (max 120 characters).", query.From.UserName))
	}
}

func (b *Bot) handleDenyReason(msg *tgbotapi.Message) {
	userID := msg.From.ID
	rawID := b.getTemp(userID, "deny_tx")
	chatRaw := b.getTemp(userID, "deny_chat")
	msgRaw := b.getTemp(userID, "deny_msg")
	b.clearState(userID)

	requestID, err := strconv.Atoi(rawID)
	if err != nil {
		b.sendMessage(msg.Chat.ID, "That transaction is gone. Start over.")
		return
	}

	req, directive, err := b.Engine.Deny(context.Background(), requestID,
		userID, msg.From.String(), b.memberTags(userID), msg.Text)
	if err != nil {
		b.sendMessage(msg.Chat.ID, userMessage(err))
		return
	}

	chatID, _ := strconv.ParseInt(chatRaw, 10, 64)
	messageID, _ := strconv.Atoi(msgRaw)
	if chatID != 0 && messageID != 0 {
		b.decorate(req, directive)
		text, keyboard := b.formatDirective(req, directive)
		b.editMessage(chatID, messageID, text, keyboard)
	} else {
		b.sendMessage(msg.Chat.ID, "Transaction denied.")
	}
}

// decorate attaches the target's platform profile to a directive when
// the (cached) lookup succeeds; a failed lookup changes nothing.
func (b *Bot) decorate(req *models.TransactionRequest, d *render.Directive) {
	if profile := b.Identity.Resolve(context.Background(), req.TargetUsername); profile != nil {
		d.ProfileURL = profile.ProfileURL
		d.AvatarURL = profile.AvatarURL
	}
}

// publishDirective posts a fresh transaction card.
func (b *Bot) publishDirective(chatID int64, req *models.TransactionRequest, d *render.Directive) {
	b.decorate(req, d)

	text, keyboard := b.formatDirective(req, d)
	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = tgbotapi.ModeMarkdown
	if keyboard != nil {
		out.ReplyMarkup = *keyboard
	}
	if _, err := b.API.Send(out); err != nil {
		b.Log.Warnw("publish transaction failed", "request", req.ID, "error", err)
	}
}

// editDirective rewrites a posted card after a state change. The
// profile link is re-attached so it survives into terminal states.
func (b *Bot) editDirective(msg *tgbotapi.Message, req *models.TransactionRequest, d *render.Directive) {
	if msg == nil {
		return
	}
	b.decorate(req, d)
	text, keyboard := b.formatDirective(req, d)
	b.editMessage(msg.Chat.ID, msg.MessageID, text, keyboard)
}

func (b *Bot) editMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	var err error
	if keyboard != nil {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard)
		edit.ParseMode = tgbotapi.ModeMarkdown
		_, err = b.API.Send(edit)
	} else {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
		edit.ParseMode = tgbotapi.ModeMarkdown
		_, err = b.API.Send(edit)
	}
	if err != nil {
		b.Log.Warnw("edit transaction failed", "chat", chatID, "message", messageID, "error", err)
	}
}

// formatDirective turns a renderer directive into Telegram text and an
// inline keyboard built from its affordances.
func (b *Bot) formatDirective(req *models.TransactionRequest, d *render.Directive) (string, *tgbotapi.InlineKeyboardMarkup) {
	actor := d.ActorName
	if actor == "" {
		actor = "Pending"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n\n%s\n\n", d.Title, d.Body)
	fmt.Fprintf(&sb, "Requested by: %s\n", d.RequestedBy)
	fmt.Fprintf(&sb, "%s: %s\n", d.ActorLabel, actor)
	fmt.Fprintf(&sb, "Reason: %s\n", d.Reason)

	var rows [][]tgbotapi.InlineKeyboardButton
	var actions []tgbotapi.InlineKeyboardButton
	for _, a := range d.Affordances {
		switch a.Kind {
		case render.AffordanceAccept:
			actions = append(actions,
				tgbotapi.NewInlineKeyboardButtonData(a.Label, fmt.Sprintf("tx_accept:%d", req.ID)))
		case render.AffordanceDeny:
			actions = append(actions,
				tgbotapi.NewInlineKeyboardButtonData(a.Label, fmt.Sprintf("tx_deny:%d", req.ID)))
		}
	}
	if len(actions) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(actions...))
	}
	if d.ProfileURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Profile", d.ProfileURL)))
	}
	if len(rows) == 0 {
		return sb.String(), nil
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return sb.String(), &keyboard
}
