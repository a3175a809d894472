package parser

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// BotIDPrefix marks synthetic ids derived for AI participants.
const BotIDPrefix = "bot_"

var (
	colorMarkup = regexp.MustCompile(`\{#[^}]*\}`)
	botMarker   = regexp.MustCompile(`(?i)[\[(]\s*bot\s*[\])]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// IsGenuineID reports whether a participant token is a durable account id,
// i.e. a UUID in its canonical 36-character hyphenated form.
func IsGenuineID(token string) bool {
	if len(token) != 36 {
		return false
	}
	_, err := uuid.Parse(token)
	return err == nil
}

// BotName strips color markup and bot markers from a raw AI participant name.
func BotName(token string) string {
	name := colorMarkup.ReplaceAllString(token, "")
	name = botMarker.ReplaceAllString(name, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(name, " "))
}

// BotID derives the synthetic id of an AI participant. It depends only on the raw
// token, so the same bot name maps to the same id in every match.
func BotID(token string) string {
	name := strings.ToLower(BotName(token))
	if name == "" {
		return BotIDPrefix + "unknown"
	}
	return BotIDPrefix + strings.ReplaceAll(name, " ", "_")
}

// resolveParticipant maps a raw token to a player id. Genuine ids are
// lower-cased so one account has one id whatever case the log used.
func resolveParticipant(token string) (id string, isBot bool) {
	if IsGenuineID(token) {
		return strings.ToLower(token), false
	}
	return BotID(token), true
}
