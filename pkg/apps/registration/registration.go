// Package registration lets senders register a display name with
// "JOIN <name>" (also REGISTER or REG).
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"smsrouter/pkg/handler"
	"smsrouter/pkg/store"
)

const (
	helpText    = "To register, send JOIN <NAME>"
	failureText = "Sorry, we could not save your registration. Please try again later."
)

// ErrStoreRequired is returned when the app is enabled without a store.
var ErrStoreRequired = errors.New("registration requires a store")

// Contacts is the subset of the store the handler needs.
type Contacts interface {
	Register(ctx context.Context, channel string, identity string, name string) (store.Contact, bool, error)
}

// New builds the registration keyword handler.
func New(contacts Contacts, log *slog.Logger) (*handler.KeywordHandler, error) {
	if contacts == nil {
		return nil, ErrStoreRequired
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "apps.registration")

	return handler.NewKeywordHandler(handler.KeywordConfig{
		Name:    "registration",
		Keyword: "register|reg|join",
		Help: func(_ context.Context, msg *handler.Message) error {
			msg.Respond(helpText)
			return nil
		},
		Handle: func(ctx context.Context, msg *handler.Message, name string) error {
			in := msg.Inbound()

			contact, created, err := contacts.Register(ctx, in.Channel, in.SenderID, name)
			if err != nil {
				msg.RespondError(failureText)
				return fmt.Errorf("register %s: %w", in.SenderID, err)
			}

			log.Info("Contact registered", "contact_id", contact.ID, "channel", in.Channel, "created", created)
			if created {
				msg.Respond(fmt.Sprintf("Thank you for registering, %s!", contact.Name))
			} else {
				msg.Respond(fmt.Sprintf("Your name has been updated to %s.", contact.Name))
			}
			return nil
		},
	})
}
