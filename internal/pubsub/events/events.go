package events

import (
	"time"

	"github.com/AlekSi/pointer"
	"github.com/pkg/errors"
)

const (
	ToggleStartStopKey   = "toggleStartStop"
	PauseRecordingKey    = "pauseRecording"
	ResumeRecordingKey   = "resumeRecording"
	ToggleMicKey         = "toggleMic"
	ToggleVideoTrackKey  = "toggleVideoTrack"
	DeleteSegmentKey     = "deleteSegment"
	ResetSessionKey      = "resetSession"
	EndSessionKey        = "endSession"
	GetRecorderStatusKey = "getRecorderStatus"

	CaptureStateChangedKey = "captureStateChanged"
	SegmentRecordedKey     = "segmentRecorded"
	UploadProgressKey      = "uploadProgress"
	SessionFinalizedKey    = "sessionFinalized"
	RecorderStatusKey      = "recorderStatus"
)

/*
toggleStartStop (UI -> Recorder)
```JSON5
{
	id: 'toggleStartStop',
	sessionId: <String>,
}
```
Also the shape of pauseRecording, resumeRecording, toggleMic and
toggleVideoTrack.
*/

type Gesture struct {
	Id        string `json:"id,omitempty"`
	SessionId string `json:"sessionId,omitempty"`
}

func (e *Gesture) Validate() error {
	if e.SessionId == "" {
		return errors.New("missing sessionId")
	}
	return nil
}

/*
deleteSegment (UI -> Recorder)
```JSON5
{
	id: 'deleteSegment',
	sessionId: <String>,
	createdAt: <Number>, // segment timestamp, UTC millis
}
```
*/

type DeleteSegment struct {
	Id        string `json:"id,omitempty"`
	SessionId string `json:"sessionId,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

func (e *DeleteSegment) Validate() error {
	if e.SessionId == "" {
		return errors.New("missing sessionId")
	}
	if e.CreatedAt <= 0 {
		return errors.New("missing createdAt")
	}
	return nil
}

func (e *DeleteSegment) Timestamp() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

/*
resetSession (UI -> Recorder)
```JSON5
{
	id: 'resetSession',
	sessionId: <String>,
	reacquire: <Boolean>, // grab a fresh device session for the next attempt
}
```
*/

type ResetSession struct {
	Id        string `json:"id,omitempty"`
	SessionId string `json:"sessionId,omitempty"`
	Reacquire bool   `json:"reacquire,omitempty"`
}

func (e *ResetSession) Validate() error {
	if e.SessionId == "" {
		return errors.New("missing sessionId")
	}
	return nil
}

/*
endSession (UI -> Recorder)
```JSON5
{
	id: 'endSession',
	sessionId: <String>,
	ownerId: <String>, // clip records are persisted under this user
}
```
*/

type EndSession struct {
	Id        string `json:"id,omitempty"`
	SessionId string `json:"sessionId,omitempty"`
	OwnerId   string `json:"ownerId,omitempty"`
}

func (e *EndSession) Validate() error {
	if e.SessionId == "" {
		return errors.New("missing sessionId")
	}
	if e.OwnerId == "" {
		return errors.New("missing ownerId")
	}
	return nil
}

/*
captureStateChanged (Recorder -> UI)
```JSON5
{
	id: 'captureStateChanged',
	sessionId: <String>,
	state: <Object>, // full snapshot, never a delta
}
```
*/

type CaptureStateChanged struct {
	Id        string      `json:"id,omitempty"`
	SessionId string      `json:"sessionId,omitempty"`
	State     interface{} `json:"state"`
}

func NewCaptureStateChanged(sessionId string, state interface{}) *CaptureStateChanged {
	return &CaptureStateChanged{
		Id:        CaptureStateChangedKey,
		SessionId: sessionId,
		State:     state,
	}
}

/*
segmentRecorded (Recorder -> UI)
```JSON5
{
	id: 'segmentRecorded',
	sessionId: <String>,
	createdAt: <Number>, // UTC millis, the segment's identity for deleteSegment
	sizeBytes: <Number>,
	mimeType: <String>,
	url: <String>, // playback reference
}
```
*/

type SegmentRecorded struct {
	Id        string `json:"id,omitempty"`
	SessionId string `json:"sessionId,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	Url       string `json:"url,omitempty"`
}

func NewSegmentRecorded(sessionId string, createdAt time.Time, sizeBytes int64, mimeType, url string) *SegmentRecorded {
	return &SegmentRecorded{
		Id:        SegmentRecordedKey,
		SessionId: sessionId,
		CreatedAt: createdAt.UnixMilli(),
		SizeBytes: sizeBytes,
		MimeType:  mimeType,
		Url:       url,
	}
}

/*
uploadProgress (Recorder -> UI)
```JSON5
{
	id: 'uploadProgress',
	sessionId: <String>,
	progress: <Number>, // 0-100
	completed: <Number>,
	total: <Number>,
}
```
*/

type UploadProgress struct {
	Id        string  `json:"id,omitempty"`
	SessionId string  `json:"sessionId,omitempty"`
	Progress  float64 `json:"progress"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
}

func NewUploadProgress(sessionId string, progress float64, completed, total int) *UploadProgress {
	return &UploadProgress{
		Id:        UploadProgressKey,
		SessionId: sessionId,
		Progress:  progress,
		Completed: completed,
		Total:     total,
	}
}

/*
sessionFinalized (Recorder -> UI)
```JSON5
{
	id: 'sessionFinalized',
	sessionId: <String>,
	ownerId: <String>,
	uploaded: <Number>,
	failed: <Number>,
	clips: [{ url: <String>, key: <String>, filename: <String> }],
}
```
*/

type FinalizedClip struct {
	Url      string `json:"url,omitempty"`
	Key      string `json:"key,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type SessionFinalized struct {
	Id        string          `json:"id,omitempty"`
	SessionId string          `json:"sessionId,omitempty"`
	OwnerId   string          `json:"ownerId,omitempty"`
	Uploaded  int             `json:"uploaded"`
	Failed    int             `json:"failed"`
	Clips     []FinalizedClip `json:"clips,omitempty"`
	Error     *string         `json:"error,omitempty"`
}

func (e *SessionFinalized) WithError(msg string) *SessionFinalized {
	e.Error = pointer.ToString(msg)
	return e
}

func NewSessionFinalized(sessionId, ownerId string, uploaded, failed int, clips []FinalizedClip) *SessionFinalized {
	return &SessionFinalized{
		Id:        SessionFinalizedKey,
		SessionId: sessionId,
		OwnerId:   ownerId,
		Uploaded:  uploaded,
		Failed:    failed,
		Clips:     clips,
	}
}

/*
recorderStatus (Recorder -> UI)
```JSON5
{
	id: 'recorderStatus',
	appVersion: <String>,
	instanceId: <String>,
	timestamp: <Number>,
}
```
*/

type RecorderStatus struct {
	Id         string `json:"id,omitempty"`
	AppVersion string `json:"appVersion,omitempty"`
	InstanceId string `json:"instanceId,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

func NewRecorderStatus(version, instanceId string) *RecorderStatus {
	return &RecorderStatus{
		Id:         RecorderStatusKey,
		AppVersion: version,
		InstanceId: instanceId,
		Timestamp:  time.Now().UnixMilli(),
	}
}
