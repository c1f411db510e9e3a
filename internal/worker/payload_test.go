package worker

import (
	"strings"
	"testing"
	"time"
)

func TestParsePayload(t *testing.T) {
	fixedNow := func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.Local) }

	tests := []struct {
		name    string
		payload string
		want    inboundMessage
		wantErr string
	}{
		{
			name:    "full update",
			payload: `{"message":{"chat":{"id":12345},"from":{"first_name":"Ann"},"text":"Hi","date":1767225600}}`,
			want: inboundMessage{
				ChatID:    "12345",
				Name:      "Ann",
				Text:      "Hi",
				Timestamp: time.Unix(1767225600, 0),
			},
		},
		{
			name:    "missing first name falls back to User",
			payload: `{"message":{"chat":{"id":7},"text":"hello"}}`,
			want: inboundMessage{
				ChatID:    "7",
				Name:      "User",
				Text:      "hello",
				Timestamp: fixedNow(),
			},
		},
		{
			name:    "negative chat id (group)",
			payload: `{"message":{"chat":{"id":-100200},"from":{"first_name":"Bo"},"text":"yo"}}`,
			want: inboundMessage{
				ChatID:    "-100200",
				Name:      "Bo",
				Text:      "yo",
				Timestamp: fixedNow(),
			},
		},
		{
			name:    "not json",
			payload: `this is not json`,
			wantErr: "invalid json",
		},
		{
			name:    "no message",
			payload: `{"update_id":1}`,
			wantErr: "no message",
		},
		{
			name:    "no chat",
			payload: `{"message":{"text":"hi"}}`,
			wantErr: "no chat id",
		},
		{
			name:    "no text (sticker update)",
			payload: `{"message":{"chat":{"id":5},"sticker":{"emoji":"x"}}}`,
			wantErr: "no text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePayload(tt.payload, fixedNow)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePayload: %v", err)
			}
			if *got != tt.want {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestHistoryLine(t *testing.T) {
	ts := time.Date(2026, 8, 31, 9, 30, 5, 0, time.Local)
	got := historyLine("Ann", ts, "Hi")
	want := "[Ann at 2026-08-31 09:30:05]: Hi\n"
	if got != want {
		t.Errorf("historyLine = %q, want %q", got, want)
	}
}
