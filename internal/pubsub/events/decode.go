package events

import (
	log "github.com/sirupsen/logrus"
	"github.com/titanous/json5"
)

// Event is one decoded inbound message. Data holds the typed gesture,
// nil when the payload did not parse or the id is unknown.
type Event struct {
	Id   string
	Data interface{}
}

func (e *Event) IsValid() bool {
	return e != nil && e.Id != "" && e.Data != nil
}

func (e *Event) Gesture() *Gesture {
	if v, ok := e.Data.(*Gesture); ok {
		return v
	}
	return nil
}

func (e *Event) DeleteSegment() *DeleteSegment {
	if v, ok := e.Data.(*DeleteSegment); ok {
		return v
	}
	return nil
}

func (e *Event) ResetSession() *ResetSession {
	if v, ok := e.Data.(*ResetSession); ok {
		return v
	}
	return nil
}

func (e *Event) EndSession() *EndSession {
	if v, ok := e.Data.(*EndSession); ok {
		return v
	}
	return nil
}

// Decode parses an inbound message. Payloads are JSON5 since upstream
// tooling emits unquoted keys.
func Decode(message []byte) *Event {
	m := make(map[string]interface{})
	if err := json5.Unmarshal(message, &m); err != nil {
		log.Debugf("undecodable message: %s", err)
		return &Event{}
	}

	id, ok := m["id"].(string)
	if !ok {
		return &Event{}
	}

	e := &Event{Id: id}

	unmarshal := func(v interface{}) interface{} {
		if err := json5.Unmarshal(message, v); err != nil {
			log.Debugf("undecodable %s payload: %s", id, err)
			return nil
		}
		return v
	}

	switch id {
	case ToggleStartStopKey, PauseRecordingKey, ResumeRecordingKey,
		ToggleMicKey, ToggleVideoTrackKey:
		e.Data = unmarshal(&Gesture{})
	case DeleteSegmentKey:
		e.Data = unmarshal(&DeleteSegment{})
	case ResetSessionKey:
		e.Data = unmarshal(&ResetSession{})
	case EndSessionKey:
		e.Data = unmarshal(&EndSession{})
	case GetRecorderStatusKey:
		e.Data = &Gesture{Id: id}
	}

	return e
}
