package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	f64 := func(v float64) *float64 { return &v }
	boolp := func(v bool) *bool { return &v }

	tests := map[string]struct {
		event string
		data  string
		host  bool

		wantCmd command
		wantErr bool
	}{
		"join valid": {
			event:   "join",
			data:    `{"roomCode":"AbC123","displayName":"Alice"}`,
			wantCmd: joinCmd{RoomCode: "AbC123", DisplayName: "Alice"},
		},
		"join blank display name": {
			event:   "join",
			data:    `{"roomCode":"AbC123","displayName":"   "}`,
			wantErr: true,
		},
		"join missing room code": {
			event:   "join",
			data:    `{"displayName":"Alice"}`,
			wantErr: true,
		},
		"join on host channel": {
			event:   "join",
			data:    `{"roomCode":"AbC123","displayName":"Alice"}`,
			host:    true,
			wantErr: true,
		},
		"submitAnswer valid": {
			event: "submitAnswer",
			data:  `{"roomCode":"AbC123","answer":"B","correctAnswer":"B","timeTaken":2,"totalTime":10}`,
			wantCmd: submitAnswerCmd{
				RoomCode:      "AbC123",
				Answer:        "B",
				CorrectAnswer: "B",
				TimeTaken:     f64(2),
				TotalTime:     f64(10),
			},
		},
		"submitAnswer numeric answer": {
			event: "submitAnswer",
			data:  `{"roomCode":"AbC123","answer":4,"correctAnswer":4,"timeTaken":0,"totalTime":10}`,
			wantCmd: submitAnswerCmd{
				RoomCode:      "AbC123",
				Answer:        float64(4),
				CorrectAnswer: float64(4),
				TimeTaken:     f64(0),
				TotalTime:     f64(10),
			},
		},
		"submitAnswer missing timing": {
			event:   "submitAnswer",
			data:    `{"roomCode":"AbC123","answer":"B","correctAnswer":"B"}`,
			wantErr: true,
		},
		"submitAnswer negative time taken": {
			event:   "submitAnswer",
			data:    `{"roomCode":"AbC123","answer":"B","correctAnswer":"B","timeTaken":-1,"totalTime":10}`,
			wantErr: true,
		},
		"submitAnswer zero total time": {
			event:   "submitAnswer",
			data:    `{"roomCode":"AbC123","answer":"B","correctAnswer":"B","timeTaken":2,"totalTime":0}`,
			wantErr: true,
		},
		"submitAnswer object answer": {
			event:   "submitAnswer",
			data:    `{"roomCode":"AbC123","answer":{"a":1},"correctAnswer":"B","timeTaken":2,"totalTime":10}`,
			wantErr: true,
		},
		"submitAnswer null answer": {
			event:   "submitAnswer",
			data:    `{"roomCode":"AbC123","answer":null,"correctAnswer":"B","timeTaken":2,"totalTime":10}`,
			wantErr: true,
		},
		"submitAnswer on host channel": {
			event:   "submitAnswer",
			data:    `{"roomCode":"AbC123","answer":"B","correctAnswer":"B","timeTaken":2,"totalTime":10}`,
			host:    true,
			wantErr: true,
		},
		"createRoom valid": {
			event:   "createRoom",
			data:    `{"hostName":"Host","durationMinutes":5}`,
			host:    true,
			wantCmd: createRoomCmd{HostName: "Host", DurationMinutes: 5},
		},
		"createRoom zero duration": {
			event:   "createRoom",
			data:    `{"hostName":"Host","durationMinutes":0}`,
			host:    true,
			wantErr: true,
		},
		"createRoom negative duration": {
			event:   "createRoom",
			data:    `{"hostName":"Host","durationMinutes":-3}`,
			host:    true,
			wantErr: true,
		},
		"createRoom on participant channel": {
			event:   "createRoom",
			data:    `{"hostName":"Host","durationMinutes":5}`,
			wantErr: true,
		},
		"setPlaying valid": {
			event:   "setPlaying",
			data:    `{"roomCode":"AbC123","play":true}`,
			host:    true,
			wantCmd: setPlayingCmd{RoomCode: "AbC123", Play: boolp(true)},
		},
		"setPlaying missing play": {
			event:   "setPlaying",
			data:    `{"roomCode":"AbC123"}`,
			host:    true,
			wantErr: true,
		},
		"sendQuestion valid": {
			event:   "sendQuestion",
			data:    `{"roomCode":"AbC123","question":{"text":"2+2?","options":["3","4"]}}`,
			host:    true,
			wantCmd: sendQuestionCmd{RoomCode: "AbC123", Question: json.RawMessage(`{"text":"2+2?","options":["3","4"]}`)},
		},
		"sendQuestion null question": {
			event:   "sendQuestion",
			data:    `{"roomCode":"AbC123","question":null}`,
			host:    true,
			wantErr: true,
		},
		"sendQuestion on participant channel": {
			event:   "sendQuestion",
			data:    `{"roomCode":"AbC123","question":{"text":"2+2?"}}`,
			wantErr: true,
		},
		"unknown event": {
			event:   "shoutAnswer",
			data:    `{}`,
			wantErr: true,
		},
		"malformed data": {
			event:   "join",
			data:    `"not an object"`,
			wantErr: true,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cmd, err := parseCommand(envelope{Event: tt.event, Data: json.RawMessage(tt.data)}, tt.host)

			if tt.wantErr {
				require.ErrorIs(t, err, errInvalidRequest)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, cmd)
		})
	}
}
