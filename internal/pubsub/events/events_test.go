package events

import (
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		wantId    string
		wantValid bool
	}{
		{
			name:      "toggleStartStop",
			message:   `{id: 'toggleStartStop', sessionId: 'test-session'}`,
			wantId:    ToggleStartStopKey,
			wantValid: true,
		},
		{
			name:      "pauseRecording",
			message:   `{"id": "pauseRecording", "sessionId": "test-session"}`,
			wantId:    PauseRecordingKey,
			wantValid: true,
		},
		{
			name:      "deleteSegment",
			message:   `{id: 'deleteSegment', sessionId: 'test-session', createdAt: 1714060800000}`,
			wantId:    DeleteSegmentKey,
			wantValid: true,
		},
		{
			name:      "endSession",
			message:   `{id: 'endSession', sessionId: 'test-session', ownerId: 'user-1'}`,
			wantId:    EndSessionKey,
			wantValid: true,
		},
		{
			name:      "getRecorderStatus",
			message:   `{id: 'getRecorderStatus'}`,
			wantId:    GetRecorderStatusKey,
			wantValid: true,
		},
		{
			name:      "unknown id",
			message:   `{id: 'startRecording', sessionId: 'test-session'}`,
			wantId:    "startRecording",
			wantValid: false,
		},
		{
			name:      "missing id",
			message:   `{sessionId: 'test-session'}`,
			wantId:    "",
			wantValid: false,
		},
		{
			name:      "garbage",
			message:   `not json at all`,
			wantId:    "",
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := Decode([]byte(tt.message))
			if event.Id != tt.wantId {
				t.Errorf("Decode() id = %v, want %v", event.Id, tt.wantId)
			}
			if event.IsValid() != tt.wantValid {
				t.Errorf("Decode() valid = %v, want %v", event.IsValid(), tt.wantValid)
			}
		})
	}
}

func TestDecode_DeleteSegmentPayload(t *testing.T) {
	event := Decode([]byte(`{id: 'deleteSegment', sessionId: 's1', createdAt: 1714060800000}`))

	e := event.DeleteSegment()
	if e == nil {
		t.Fatal("Decode() did not produce a DeleteSegment payload")
	}
	if e.SessionId != "s1" {
		t.Errorf("SessionId = %v, want s1", e.SessionId)
	}
	want := time.UnixMilli(1714060800000)
	if !e.Timestamp().Equal(want) {
		t.Errorf("Timestamp() = %v, want %v", e.Timestamp(), want)
	}
}

func TestGesture_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   Gesture
		wantErr bool
	}{
		{
			name: "valid",
			event: Gesture{
				Id:        ToggleStartStopKey,
				SessionId: "test-session",
			},
			wantErr: false,
		},
		{
			name: "missing sessionId",
			event: Gesture{
				Id: ToggleStartStopKey,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Gesture.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeleteSegment_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   DeleteSegment
		wantErr bool
	}{
		{
			name: "valid",
			event: DeleteSegment{
				Id:        DeleteSegmentKey,
				SessionId: "test-session",
				CreatedAt: 1714060800000,
			},
			wantErr: false,
		},
		{
			name: "missing createdAt",
			event: DeleteSegment{
				Id:        DeleteSegmentKey,
				SessionId: "test-session",
			},
			wantErr: true,
		},
		{
			name: "missing sessionId",
			event: DeleteSegment{
				Id:        DeleteSegmentKey,
				CreatedAt: 1714060800000,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("DeleteSegment.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEndSession_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   EndSession
		wantErr bool
	}{
		{
			name: "valid",
			event: EndSession{
				Id:        EndSessionKey,
				SessionId: "test-session",
				OwnerId:   "user-1",
			},
			wantErr: false,
		},
		{
			name: "missing ownerId",
			event: EndSession{
				Id:        EndSessionKey,
				SessionId: "test-session",
			},
			wantErr: true,
		},
		{
			name: "missing sessionId",
			event: EndSession{
				Id:      EndSessionKey,
				OwnerId: "user-1",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("EndSession.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
