package business

import (
	"context"

	"github.com/pitabwire/util"

	"github.com/antinvestor/service-signal/apps/default/service"
	"github.com/antinvestor/service-signal/apps/default/service/models"
	"github.com/antinvestor/service-signal/apps/default/service/protocol"
	"github.com/antinvestor/service-signal/internal/telemetry"
)

type messageBusiness struct {
	registry ConnectionRegistry
}

// NewMessageBusiness creates the business logic for outgoing messages.
func NewMessageBusiness(registry ConnectionRegistry) MessageBusiness {
	return &messageBusiness{registry: registry}
}

func (mb *messageBusiness) SendMessage(
	ctx context.Context,
	account *models.Account,
	recipient string,
	message protocol.OutgoingMessage,
) error {
	if recipient == "" {
		return service.ErrMessageRecipientRequired
	}
	if message.Body == "" && len(message.Attachments) == 0 {
		return service.ErrMessageBodyRequired
	}

	conn, err := mb.registry.GetOrCreateConnection(ctx, account)
	if err != nil {
		return err
	}

	if err = conn.Send(ctx, recipient, message); err != nil {
		util.Log(ctx).WithError(err).WithFields(map[string]any{
			"client_id": account.ClientID,
			"tel":       account.Tel,
			"recipient": recipient,
		}).Error("failed to send message")
		return err
	}

	telemetry.MessagesSentCounter.Add(ctx, 1)
	return nil
}
