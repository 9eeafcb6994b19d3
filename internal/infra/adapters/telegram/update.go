// File: internal/infra/adapters/telegram/update.go
package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-max-bridge/internal/domain/model"
)

// ChannelPostFromUpdate maps a wire update to the provider-neutral shape.
// The second return is false for anything that is not a new channel post
// (edits, private messages, callback queries, ...), which dispatch treats as
// an acknowledged no-op.
func ChannelPostFromUpdate(u *tgbotapi.Update) (*model.ChannelPost, bool) {
	msg := u.ChannelPost
	if msg == nil || msg.Chat == nil {
		return nil, false
	}
	post := &model.ChannelPost{
		MessageID:   int64(msg.MessageID),
		ChatID:      msg.Chat.ID,
		Text:        msg.Text,
		Caption:     msg.Caption,
		HasVideo:    msg.Video != nil,
		HasAudio:    msg.Audio != nil,
		HasDocument: msg.Document != nil,
	}
	if len(msg.Photo) > 0 {
		post.HasPhoto = true
		// Sizes arrive smallest-first; forward the largest rendition.
		post.PhotoFileID = msg.Photo[len(msg.Photo)-1].FileID
	}
	return post, true
}
