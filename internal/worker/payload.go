package worker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// inboundMessage is the parsed shape the worker needs from a raw channel
// payload. Anything else in the update is ignored.
type inboundMessage struct {
	ChatID    string
	Name      string
	Text      string
	Timestamp time.Time
}

// rawUpdate mirrors the subset of a Telegram update the worker reads.
type rawUpdate struct {
	Message *struct {
		Chat *struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From *struct {
			FirstName string `json:"first_name"`
		} `json:"from"`
		Text string `json:"text"`
		Date int64  `json:"date"`
	} `json:"message"`
}

// parsePayload extracts the chat id, sender name, text and timestamp from a
// raw update. A payload without a message, chat id or text is malformed.
func parsePayload(payload string, now func() time.Time) (*inboundMessage, error) {
	var upd rawUpdate
	if err := json.Unmarshal([]byte(payload), &upd); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if upd.Message == nil {
		return nil, fmt.Errorf("payload has no message")
	}
	if upd.Message.Chat == nil || upd.Message.Chat.ID == 0 {
		return nil, fmt.Errorf("payload has no chat id")
	}
	if upd.Message.Text == "" {
		return nil, fmt.Errorf("payload has no text")
	}

	name := "User"
	if upd.Message.From != nil && upd.Message.From.FirstName != "" {
		name = upd.Message.From.FirstName
	}

	ts := now()
	if upd.Message.Date > 0 {
		ts = time.Unix(upd.Message.Date, 0)
	}

	return &inboundMessage{
		ChatID:    strconv.FormatInt(upd.Message.Chat.ID, 10),
		Name:      name,
		Text:      upd.Message.Text,
		Timestamp: ts,
	}, nil
}

const historyTimeLayout = "2006-01-02 15:04:05"

// historyLine formats one conversation turn for the append-only history
// buffer.
func historyLine(name string, ts time.Time, text string) string {
	return fmt.Sprintf("[%s at %s]: %s\n", name, ts.Local().Format(historyTimeLayout), text)
}
