package bridge

import (
	"testing"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"

	"github.com/stretchr/testify/assert"
)

func TestStore_Receive(t *testing.T) {
	self := event.Sender{ID: "1", Name: "Ada"}
	peer := event.Sender{ID: "2", Name: "Grace"}

	tests := []struct {
		name           string
		viewing        string
		pending        *event.ChatMessage
		msg            event.ChatMessage
		wantTranscript int
		wantUnread     int
		wantToast      bool
	}{
		{
			name:           "peer message in open chat",
			viewing:        "5",
			msg:            event.ChatMessage{ID: "1", ChatID: "5", Sender: peer},
			wantTranscript: 1,
		},
		{
			name:       "peer message elsewhere",
			viewing:    "6",
			msg:        event.ChatMessage{ID: "1", ChatID: "5", Sender: peer},
			wantUnread: 1,
			wantToast:  true,
		},
		{
			name:           "own message confirms pending copy",
			viewing:        "5",
			pending:        &event.ChatMessage{ChatID: "5", Sender: self, TempID: "t1"},
			msg:            event.ChatMessage{ID: "9", ChatID: "5", Sender: self, TempID: "t1"},
			wantTranscript: 1,
		},
		{
			name:    "own message without pending copy",
			viewing: "5",
			msg:     event.ChatMessage{ID: "9", ChatID: "5", Sender: self},
		},
		{
			name: "own message in closed chat",
			msg:  event.ChatMessage{ID: "9", ChatID: "5", Sender: self, TempID: "t1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			s.setSelf(self.ID)
			s.View(tt.viewing)
			if tt.pending != nil {
				s.addPending(*tt.pending)
			}

			appended, toast := s.receive(tt.msg)

			assert.Len(t, s.Transcript(), tt.wantTranscript)
			assert.Equal(t, tt.wantUnread, s.Unread(tt.msg.ChatID))
			assert.Equal(t, tt.wantToast, toast != nil)
			assert.Equal(t, tt.wantTranscript == 1 && tt.pending == nil, appended)
		})
	}
}

func TestStore_LoadOnlyForViewedChat(t *testing.T) {
	s := NewStore()
	s.View("5")
	s.Load("6", []event.ChatMessage{{ID: "1"}})
	assert.Empty(t, s.Transcript())
	s.Load("5", []event.ChatMessage{{ID: "1"}, {ID: "2"}})
	assert.Len(t, s.Transcript(), 2)
	assert.Equal(t, "5", s.Viewing())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
}
