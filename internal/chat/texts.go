package chat

import (
	"strconv"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/game"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/media"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

const (
	textWaiting           = "⏳ Waiting for a partner... Send /end to stop searching."
	textStillWaiting      = "⏳ Still searching for a partner... Send /end to stop searching."
	textMatched           = "📩 You're connected to an anonymous partner. Say hi!"
	textAlreadyInSession  = "You're already in a chat. Send /end to leave it."
	textProfileIncomplete = "Set your gender, age band and region with /profile before searching."
	textProfileInvalid    = "Usage: /profile <male|female> <age band> <region>"
	textProfileSaved      = "Profile saved."
	textUnavailable       = "Something went wrong on our side. Please try again."
	textCancelled         = "🛑 Stopped searching."
	textNotInSession      = "You're not in a chat right now. Send /find to look for a partner."
	textEnded             = "❌ Chat ended. How was your partner?"
	textPartnerLeft       = "❌ Your partner left the chat. How was it?"
	textDeliveryFailed    = "Your partner can't be reached, so the chat was ended. Send /find to meet someone new."
	textInvite            = "🎮 Your partner invites you to tic-tac-toe."
	textInviteSent        = "Invite sent. Waiting for your partner..."
	textInviteExpired     = "This invite has expired."
	textInviteDeclined    = "Your partner declined the game."
	textYouDeclined       = "Invite declined."
	textGameActive        = "A game is already running in this chat."
	textRatingRejected    = "You can only rate your last partner, once."
	textRated             = "Thanks for the feedback!"
	textNoSuggestions     = "No suggestions available for that right now."
	textHelp              = "/profile <gender> <age band> <region> - set up your profile\n" +
		"/find [opposite] - find a partner\n" +
		"/next - leave this chat and find another\n" +
		"/end - end the chat or stop searching\n" +
		"/game - invite your partner to tic-tac-toe\n" +
		"/suggest <movie|music|book> - share a suggestion\n" +
		"/me - show your points and reputation\n\n" +
		"Messages are never stored."
)

var kindEmoji = map[media.Kind]string{
	media.KindMovie: "🎬",
	media.KindMusic: "🎵",
	media.KindBook:  "📚",
}

// Callback data prefixes carried by keyboard buttons.
const (
	callbackAccept  = "accept"
	callbackDecline = "decline"
	callbackRate    = "rate"
)

func idData(prefix string, id user.ID) string {
	return prefix + ":" + strconv.FormatInt(int64(id), 10)
}

func inviteKeyboard(inviter user.ID) [][]game.Button {
	return [][]game.Button{{
		{Text: "✅ Play", Data: idData(callbackAccept, inviter)},
		{Text: "✖️ No thanks", Data: idData(callbackDecline, inviter)},
	}}
}

func ratingKeyboard(rated user.ID) [][]game.Button {
	return [][]game.Button{{
		{Text: "👍", Data: idData(callbackRate+":"+string(user.RatingPositive), rated)},
		{Text: "👎", Data: idData(callbackRate+":"+string(user.RatingNegative), rated)},
	}}
}
