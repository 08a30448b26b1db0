package transport

import "testing"

func TestNormalize(t *testing.T) {
	payload := &WebhookPayload{
		Object: "instagram",
		Entry: []Entry{
			{
				ID: "ig-biz-1",
				Messaging: []Messaging{
					{
						Sender:    Party{ID: "user-1"},
						Recipient: Party{ID: "ig-biz-1"},
						Message: &MessagePart{
							MID:  "mid.1",
							Text: "Dzień dobry",
							Attachments: []Attachment{
								{Type: "image", Payload: AttachmentPayload{URL: "https://cdn.example/a.jpg"}},
								{Type: "image", Payload: AttachmentPayload{}},
							},
						},
					},
					{
						Sender:    Party{ID: "ig-biz-1"},
						Recipient: Party{ID: "user-1"},
						Message:   &MessagePart{MID: "mid.2", Text: "echo", IsEcho: true},
					},
					{
						Sender:    Party{ID: "user-2"},
						Recipient: Party{ID: "ig-biz-1"},
					},
				},
			},
		},
	}

	events := Normalize(payload)
	if len(events) != 1 {
		t.Fatalf("expected 1 event after dropping echo and empty, got %d", len(events))
	}

	e := events[0]
	if e.EntryID != "ig-biz-1" || e.SenderID != "user-1" || e.RecipientID != "ig-biz-1" {
		t.Fatalf("unexpected routing ids: %+v", e)
	}
	if e.ExternalID != "mid.1" || e.Text != "Dzień dobry" {
		t.Fatalf("unexpected content: %+v", e)
	}
	if len(e.Attachments) != 1 || e.Attachments[0] != "https://cdn.example/a.jpg" {
		t.Fatalf("expected only the attachment with a url, got %v", e.Attachments)
	}
}

func TestNormalize_EmptyEnvelope(t *testing.T) {
	if events := Normalize(&WebhookPayload{}); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}
