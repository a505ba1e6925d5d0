package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// WebhookPayload is the record shipped to a tenant's webhook for one event.
// Payload is omitted entirely for event types that carry no body.
type WebhookPayload struct {
	Receiver string    `json:"receiver"`
	Type     EventType `json:"type"`
	Payload  any       `json:"payload,omitempty"`
}

// Bytes serializes the payload to the exact byte sequence that gets signed
// and posted.
func (wp *WebhookPayload) Bytes() ([]byte, error) {
	return json.Marshal(wp)
}

// Engine-facing event data shapes. The engine adapter produces these; fields
// holding raw cipher material stay here and are never forwarded to webhooks.

// MessageData is the engine's view of an incoming or sent message.
type MessageData struct {
	Source      string
	Timestamp   any // may arrive as a textual 64-bit integer
	Body        string
	Attachments []Attachment
	Ciphertext  []byte // opaque, never forwarded
}

// Attachment describes one message attachment. Data carries the encrypted
// blob and is excluded from normalization.
type Attachment struct {
	ID              string
	ContentType     string
	Size            int64
	FileName        string
	Flags           int
	Caption         string
	BlurHash        string
	UploadTimestamp any // may arrive as a textual 64-bit integer
	Data            []byte
}

// ConfigurationData mirrors the engine's configuration sync message.
type ConfigurationData struct {
	ReadReceipts     bool
	TypingIndicators bool
	LinkPreviews     bool
}

// GroupData mirrors the engine's group details sync. The avatar blob is
// deliberately absent.
type GroupData struct {
	ID      string
	Name    string
	Members []string
	Active  bool
}

// ContactData mirrors the engine's contact details sync. Profile key
// material is deliberately absent.
type ContactData struct {
	Number  string
	Name    string
	Blocked bool
}

// VerifiedData mirrors the engine's identity verification notice. The
// identity key itself is deliberately absent.
type VerifiedData struct {
	Destination string
	State       string
}

// ReceiptData mirrors the engine's delivery receipt.
type ReceiptData struct {
	Source    string
	Timestamp any // may arrive as a textual 64-bit integer
}

// Normalized projections. Only whitelisted metadata ever appears here.

type messageBody struct {
	Source      string           `json:"source,omitempty"`
	Timestamp   int64            `json:"timestamp,omitempty"`
	Body        string           `json:"body,omitempty"`
	Attachments []attachmentMeta `json:"attachments,omitempty"`
}

type attachmentMeta struct {
	ID              string `json:"id,omitempty"`
	ContentType     string `json:"contentType,omitempty"`
	Size            int64  `json:"size,omitempty"`
	FileName        string `json:"fileName,omitempty"`
	Flags           int    `json:"flags,omitempty"`
	Caption         string `json:"caption,omitempty"`
	BlurHash        string `json:"blurHash,omitempty"`
	UploadTimestamp int64  `json:"uploadTimestamp,omitempty"`
}

type configurationBody struct {
	ReadReceipts     bool `json:"readReceipts"`
	TypingIndicators bool `json:"typingIndicators"`
	LinkPreviews     bool `json:"linkPreviews"`
}

type groupBody struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name,omitempty"`
	Members []string `json:"members,omitempty"`
	Active  bool     `json:"active"`
}

type contactBody struct {
	Number  string `json:"number,omitempty"`
	Name    string `json:"name,omitempty"`
	Blocked bool   `json:"blocked"`
}

type verifiedBody struct {
	Destination string `json:"destination,omitempty"`
	State       string `json:"state,omitempty"`
}

type receiptBody struct {
	Source    string `json:"source,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// EventNormalizer converts engine event data into serialization-safe webhook
// payloads. It is stateless and safe for concurrent use.
type EventNormalizer struct{}

// NewEventNormalizer creates a new EventNormalizer instance.
func NewEventNormalizer() *EventNormalizer {
	return &EventNormalizer{}
}

// Normalize produces the webhook payload for one event. The switch covers
// the full EventType enumeration; adding a type without a projection here is
// a compile-visible gap in the default branch's error.
func (n *EventNormalizer) Normalize(tel string, eventType EventType, eventData any) (*WebhookPayload, error) {
	payload := &WebhookPayload{Receiver: tel, Type: eventType}

	switch eventType {
	case EventTypeMessage, EventTypeSent:
		body, err := normalizeMessage(eventData)
		if err != nil {
			return nil, err
		}
		payload.Payload = body

	case EventTypeConfiguration:
		cfg, ok := eventData.(*ConfigurationData)
		if !ok {
			return nil, shapeError(eventType, eventData)
		}
		payload.Payload = &configurationBody{
			ReadReceipts:     cfg.ReadReceipts,
			TypingIndicators: cfg.TypingIndicators,
			LinkPreviews:     cfg.LinkPreviews,
		}

	case EventTypeGroup:
		group, ok := eventData.(*GroupData)
		if !ok {
			return nil, shapeError(eventType, eventData)
		}
		payload.Payload = &groupBody{
			ID:      group.ID,
			Name:    group.Name,
			Members: group.Members,
			Active:  group.Active,
		}

	case EventTypeContact:
		contact, ok := eventData.(*ContactData)
		if !ok {
			return nil, shapeError(eventType, eventData)
		}
		payload.Payload = &contactBody{
			Number:  contact.Number,
			Name:    contact.Name,
			Blocked: contact.Blocked,
		}

	case EventTypeVerified:
		verified, ok := eventData.(*VerifiedData)
		if !ok {
			return nil, shapeError(eventType, eventData)
		}
		payload.Payload = &verifiedBody{
			Destination: verified.Destination,
			State:       verified.State,
		}

	case EventTypeDelivery:
		receipt, ok := eventData.(*ReceiptData)
		if !ok {
			return nil, shapeError(eventType, eventData)
		}
		payload.Payload = &receiptBody{
			Source:    receipt.Source,
			Timestamp: coerceInt64(receipt.Timestamp),
		}

	case EventTypeRead, EventTypeError, EventTypeClose, EventTypeReconnect:
		// No payload body for these types.

	default:
		return nil, fmt.Errorf("unhandled event type: %s", eventType)
	}

	return payload, nil
}

func normalizeMessage(eventData any) (*messageBody, error) {
	msg, ok := eventData.(*MessageData)
	if !ok {
		return nil, shapeError(EventTypeMessage, eventData)
	}

	body := &messageBody{
		Source:    msg.Source,
		Timestamp: coerceInt64(msg.Timestamp),
		Body:      msg.Body,
	}

	for _, att := range msg.Attachments {
		body.Attachments = append(body.Attachments, attachmentMeta{
			ID:              att.ID,
			ContentType:     att.ContentType,
			Size:            att.Size,
			FileName:        att.FileName,
			Flags:           att.Flags,
			Caption:         att.Caption,
			BlurHash:        att.BlurHash,
			UploadTimestamp: coerceInt64(att.UploadTimestamp),
		})
	}

	return body, nil
}

// ReduceError projects an error value down to its name and message. Non-error
// values pass through unchanged.
func ReduceError(v any) any {
	err, ok := v.(error)
	if !ok {
		return v
	}

	name := "Error"
	if named, isNamed := v.(interface{ Name() string }); isNamed {
		name = named.Name()
	}

	return map[string]string{"name": name, "message": err.Error()}
}

// coerceInt64 converts the loose numeric representations the engine hands us
// into a plain integer. Large timestamps in particular can arrive as the
// textual form of a 64-bit value.
func coerceInt64(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int64:
		return n
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0
		}
		return parsed
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func shapeError(eventType EventType, eventData any) error {
	return fmt.Errorf("unexpected %s event data shape: %T", eventType, eventData)
}
