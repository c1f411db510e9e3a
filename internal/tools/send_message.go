package tools

import (
	"context"
	"strings"
)

// Sender delivers an outbound message to a chat. The Telegram
// implementation lives in internal/telegram.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// SendMessageTool lets an agent push a message to the customer's chat.
type SendMessageTool struct {
	sender Sender
	chatID string
}

// NewSendMessageTool binds the tool to one chat so the model cannot
// address arbitrary recipients.
func NewSendMessageTool(sender Sender, chatID string) *SendMessageTool {
	return &SendMessageTool{sender: sender, chatID: chatID}
}

func (t *SendMessageTool) Name() string { return "send_message" }

func (t *SendMessageTool) Description() string {
	return "Send a message to the customer's chat. Use this for every reply the customer should see."
}

func (t *SendMessageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text": map[string]interface{}{
				"type":        "string",
				"description": "The message text to send",
			},
		},
		"required": []string{"text"},
	}
}

func (t *SendMessageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	text, _ := args["text"].(string)
	if strings.TrimSpace(text) == "" {
		return ErrorResult("text is required")
	}
	if err := t.sender.Send(ctx, t.chatID, text); err != nil {
		return ErrorResult("failed to send message: " + err.Error()).WithError(err)
	}
	return SilentResult("Message sent.")
}
