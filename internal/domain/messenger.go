package domain

import "context"

// Messenger is the chat-transport capability the router consumes: send,
// edit and delete messages, and acknowledge callback presses. Implemented
// by the telegram channel; tests use a fake.
type Messenger interface {
	// Send delivers text (with an optional inline keyboard) to a chat and
	// returns the transport message id of the sent message.
	Send(ctx context.Context, chatID, text string, kb Keyboard) (int, error)
	// Edit replaces the text and keyboard of an existing message.
	Edit(ctx context.Context, chatID string, messageID int, text string, kb Keyboard) error
	// Delete removes a message. Deleting an already-deleted message is not
	// an error the caller should care about.
	Delete(ctx context.Context, chatID string, messageID int) error
	// AnswerCallback acknowledges a callback press, optionally with a
	// short toast text.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
