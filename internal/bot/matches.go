package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleMatchCreate schedules a match:
// /match_create <team A> | <team B> | <best of>
func (b *Bot) handleMatchCreate(msg *tgbotapi.Message) {
	parts := strings.Split(msg.CommandArguments(), "|")
	if len(parts) < 2 {
		b.sendMessage(msg.Chat.ID, "Usage: /match_create <team A> | <team B> | <best of>")
		return
	}

	teamA := strings.TrimSpace(parts[0])
	teamB := strings.TrimSpace(parts[1])
	bestOf := 0
	if len(parts) > 2 {
		n, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || n < 1 {
			b.sendMessage(msg.Chat.ID, "Best-of must be a positive number.")
			return
		}
		bestOf = n
	}
	if teamA == "" || teamB == "" {
		b.sendMessage(msg.Chat.ID, "Both team names are required.")
		return
	}

	match, err := b.Matches.CreateMatch(context.Background(), msg.Chat.ID, msg.From.ID, teamA, teamB, bestOf, nil)
	if err != nil {
		b.sendMessage(msg.Chat.ID, userMessage(err))
		return
	}

	b.sendMessage(msg.Chat.ID, fmt.Sprintf("Match %s scheduled: %s vs %s (Bo%d).",
		match.MatchID, match.TeamA, match.TeamB, match.BestOf))
}

func (b *Bot) handleMatchClose(msg *tgbotapi.Message) {
	matchID := strings.TrimSpace(msg.CommandArguments())
	if matchID == "" {
		b.sendMessage(msg.Chat.ID, "Usage: /match_close <match_id>")
		return
	}

	if err := b.Matches.CloseMatch(context.Background(), msg.Chat.ID, msg.From.ID, matchID); err != nil {
		b.sendMessage(msg.Chat.ID, userMessage(err))
		return
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("Match %s closed.", matchID))
}

// handleResultPost records a score: /result_post <match_id> <a> <b>
func (b *Bot) handleResultPost(msg *tgbotapi.Message) {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 3 {
		b.sendMessage(msg.Chat.ID, "Usage: /result_post <match_id> <team A score> <team B score>")
		return
	}

	aScore, errA := strconv.Atoi(fields[1])
	bScore, errB := strconv.Atoi(fields[2])
	if errA != nil || errB != nil || aScore < 0 || bScore < 0 {
		b.sendMessage(msg.Chat.ID, "Scores must be non-negative numbers.")
		return
	}

	result, err := b.Matches.PostResult(context.Background(), msg.Chat.ID, msg.From.ID,
		b.memberTags(msg.From.ID), fields[0], aScore, bScore, nil, nil)
	if err != nil {
		b.sendMessage(msg.Chat.ID, userMessage(err))
		return
	}

	b.sendMessage(msg.Chat.ID, fmt.Sprintf("Result posted for %s: %d:%d.",
		result.MatchID, result.TeamAScore, result.TeamBScore))
}

func (b *Bot) handleMatchList(msg *tgbotapi.Message) {
	list, err := b.Matches.ListMatches(context.Background(), msg.Chat.ID)
	if err != nil {
		b.Log.Errorw("list matches failed", "error", err)
		b.sendMessage(msg.Chat.ID, userMessage(err))
		return
	}
	if len(list) == 0 {
		b.sendMessage(msg.Chat.ID, "No matches scheduled.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Recent matches:\n")
	for _, m := range list {
		fmt.Fprintf(&sb, "• %s: %s vs %s (Bo%d, %s)\n",
			m.MatchID, m.TeamA, m.TeamB, m.BestOf, strings.ToLower(string(m.Status)))
	}
	b.sendMessage(msg.Chat.ID, sb.String())
}
