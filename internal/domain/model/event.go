package model

// ChannelPost is the provider-neutral view of an inbound channel post. The
// Telegram adapter maps the wire update into this shape before dispatch.
type ChannelPost struct {
	MessageID   int64
	ChatID      int64
	Text        string
	Caption     string
	PhotoFileID string // largest available size
	HasPhoto    bool
	HasVideo    bool
	HasAudio    bool
	HasDocument bool
}

// Classify derives the content type from which payload field is populated.
// Priority order is fixed: photo, text, video, audio, document.
func (p *ChannelPost) Classify() ContentType {
	switch {
	case p.HasPhoto:
		return ContentPhoto
	case p.Text != "":
		return ContentText
	case p.HasVideo:
		return ContentVideo
	case p.HasAudio:
		return ContentAudio
	case p.HasDocument:
		return ContentDocument
	default:
		return ContentUnsupported
	}
}
