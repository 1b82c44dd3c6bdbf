package event

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Inbound
	}{
		{"setup string", `{"event":"setup","data":"42"}`, SetupEvent{UserID: "42"}},
		{"setup number", `{"event":"setup","data":42}`, SetupEvent{UserID: "42"}},
		{"setup missing data", `{"event":"setup"}`, SetupEvent{}},
		{"join chat", `{"event":"joinChat","data":"7"}`, JoinChatEvent{ChatID: "7"}},
		{"join chat object", `{"event":"joinChat","data":{"id":"7"}}`, JoinChatEvent{}},
		{
			"call user",
			`{"event":"callUser","data":{"userToCall":"2","signalData":{"sdp":"x"},"from":"1"}}`,
			CallUserEvent{UserToCall: "2", SignalData: json.RawMessage(`{"sdp":"x"}`), From: "1"},
		},
		{"call user missing fields", `{"event":"callUser","data":{}}`, CallUserEvent{}},
		{
			"answer call",
			`{"event":"answerCall","data":{"signal":{"type":"answer"},"to":"1"}}`,
			AnswerCallEvent{Signal: json.RawMessage(`{"type":"answer"}`), To: "1"},
		},
		{"answer call wrong field type", `{"event":"answerCall","data":{"to":5}}`, AnswerCallEvent{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeInbound_Errors(t *testing.T) {
	_, err := DecodeInbound([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeInbound([]byte(`{"event":"callIncoming","data":{}}`))
	assert.True(t, errors.Is(err, ErrUnknownEvent), "server events are not accepted from clients")
}

func TestEncode_Shapes(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"connected has no data", ConnectedEvent{}, `{"event":"connected"}`},
		{"setup is a bare string", SetupEvent{UserID: "9"}, `{"event":"setup","data":"9"}`},
		{"call accepted is the bare signal", CallAcceptedEvent{Signal: json.RawMessage(`{"sdp":"a"}`)}, `{"event":"callAccepted","data":{"sdp":"a"}}`},
		{"call incoming", CallIncomingEvent{Signal: json.RawMessage(`1`), From: "3"}, `{"event":"callIncoming","data":{"signal":1,"from":"3"}}`},
		{"new application", NewApplicationEvent{Message: "hi", JobID: "5"}, `{"event":"newApplication","data":{"message":"hi","jobId":"5"}}`},
		{"notification", NotificationEvent{Message: "m"}, `{"event":"notification","data":{"message":"m"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestDecodeOutbound_MessageReceived(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := ChatMessage{ID: "11", ChatID: "4", Sender: Sender{ID: "1", Name: "Ada"}, Content: "hello", TempID: "tmp-1", CreatedAt: created}
	b, err := Encode(MessageReceivedEvent{Message: msg})
	require.NoError(t, err)

	got, err := DecodeOutbound(b)
	require.NoError(t, err)
	mr, ok := got.(MessageReceivedEvent)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, msg, mr.Message)
}

func TestDecodeOutbound_Unknown(t *testing.T) {
	_, err := DecodeOutbound([]byte(`{"event":"setup","data":"1"}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}
