// Package transport defines the Meta webhook wire format and its normalized
// event form.
package transport

// WebhookPayload is the raw Meta webhook envelope.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one page or Instagram account entry in the envelope.
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

// Messaging is a single messaging event.
type Messaging struct {
	Sender    Party        `json:"sender"`
	Recipient Party        `json:"recipient"`
	Timestamp int64        `json:"timestamp"`
	Message   *MessagePart `json:"message"`
}

// Party identifies a conversation participant by platform user id.
type Party struct {
	ID string `json:"id"`
}

// MessagePart is the message body of a messaging event.
type MessagePart struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is a media attachment reference.
type Attachment struct {
	Type    string            `json:"type"`
	Payload AttachmentPayload `json:"payload"`
}

// AttachmentPayload carries the attachment URL.
type AttachmentPayload struct {
	URL string `json:"url"`
}

// InboundEvent is a normalized inbound message from either platform.
type InboundEvent struct {
	EntryID     string
	SenderID    string
	RecipientID string
	ExternalID  string
	Text        string
	Attachments []string
}

// Normalize flattens the webhook envelope into inbound events, dropping
// echoes of the page's own outbound messages and events without a message.
func Normalize(payload *WebhookPayload) []InboundEvent {
	var events []InboundEvent
	for _, entry := range payload.Entry {
		for _, m := range entry.Messaging {
			if m.Message == nil || m.Message.IsEcho {
				continue
			}
			event := InboundEvent{
				EntryID:     entry.ID,
				SenderID:    m.Sender.ID,
				RecipientID: m.Recipient.ID,
				ExternalID:  m.Message.MID,
				Text:        m.Message.Text,
			}
			for _, a := range m.Message.Attachments {
				if a.Payload.URL != "" {
					event.Attachments = append(event.Attachments, a.Payload.URL)
				}
			}
			events = append(events, event)
		}
	}
	return events
}
