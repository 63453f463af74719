package chatstore

// ConversationKind is spec §3.2's kind enum.
type ConversationKind string

const (
	KindChannel ConversationKind = "channel"
	KindDirect  ConversationKind = "direct"
)

// Conversation mirrors spec §3.2.
type Conversation struct {
	ConversationID     string
	Kind               ConversationKind
	CreatedAt          int64 // unix ms
	CustomName         string
	IsDefault          bool
	LastMessageAt      *int64
	LastMessagePreview string
}

// Role is spec §3.3's member role enum.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleMember    Role = "member"
	RoleAssistant Role = "assistant"
)

// MemberEntry is a conversation's membership row, spec §4.9.
type MemberEntry struct {
	ConversationID string
	UserID         string
	JoinedAt       int64
	Nickname       string
}

// MessageStatus is spec §3.4's status enum.
type MessageStatus string

const (
	StatusSent    MessageStatus = "sent"
	StatusSending MessageStatus = "sending"
	StatusFailed  MessageStatus = "failed"
)

// ContentKind distinguishes the two message content shapes in spec §3.4.
type ContentKind string

const (
	ContentText   ContentKind = "text"
	ContentSystem ContentKind = "system"
)

// AttachmentKind distinguishes the two attachment shapes in spec §3.4.
type AttachmentKind string

const (
	AttachmentNone     AttachmentKind = ""
	AttachmentImage    AttachmentKind = "image"
	AttachmentRoadmap  AttachmentKind = "roadmap"
)

// attachmentKindCode is the fixed integer used as attachments_index's
// kind_u8 column, spec §3.6 / §4.9.
func attachmentKindCode(k AttachmentKind) int {
	switch k {
	case AttachmentImage:
		return 1
	case AttachmentRoadmap:
		return 2
	default:
		return 0
	}
}

// Attachment is spec §3.4's attachment union, flattened for storage.
type Attachment struct {
	Kind AttachmentKind

	// Image fields.
	FilePath  string
	FileName  string
	FileSize  int64
	MimeType  string
	Width     *int
	Height    *int
	Thumbnail []byte

	// Roadmap fields.
	Title string
}

// Message mirrors spec §3.4.
type Message struct {
	MessageID      string
	ConversationID string
	SenderID       string // "" means no sender (system message)
	CreatedAt      int64
	IsAI           bool
	Status         MessageStatus
	ContentKind    ContentKind
	Text           string // valid when ContentKind == ContentText
	SystemKey      string // valid when ContentKind == ContentSystem
	SystemArgs     []string
	Attachment     *Attachment
}

// UserConvSettings mirrors spec §3.5.
type UserConvSettings struct {
	UserID             string
	ConversationID     string
	Pinned             bool
	Muted              bool
	LastReadMessageID  string
	LastActiveAt       *int64
}
