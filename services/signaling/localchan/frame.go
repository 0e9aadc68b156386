package localchan

// FrameType classifies a frame moving between the two endpoints of a pair.
type FrameType int

const (
	FrameControl FrameType = iota
	FrameVoice
	FrameVideo
	FrameDTMFBegin
	FrameDTMFEnd
	FrameText
	FrameHTML
)

func (t FrameType) String() string {
	switch t {
	case FrameControl:
		return "Control"
	case FrameVoice:
		return "Voice"
	case FrameVideo:
		return "Video"
	case FrameDTMFBegin:
		return "DTMFBegin"
	case FrameDTMFEnd:
		return "DTMFEnd"
	case FrameText:
		return "Text"
	case FrameHTML:
		return "HTML"
	default:
		return "Unknown"
	}
}

// ControlSubclass enumerates the control-frame subtypes the core forwards
// or acts on directly.
type ControlSubclass int

const (
	ControlAnswer ControlSubclass = iota
	ControlRinging
	ControlHangup
	ControlHold
	ControlUnhold
	ControlConnectedLine
	ControlRedirecting
	ControlOther
)

func (c ControlSubclass) String() string {
	switch c {
	case ControlAnswer:
		return "Answer"
	case ControlRinging:
		return "Ringing"
	case ControlHangup:
		return "Hangup"
	case ControlHold:
		return "Hold"
	case ControlUnhold:
		return "Unhold"
	case ControlConnectedLine:
		return "ConnectedLine"
	case ControlRedirecting:
		return "Redirecting"
	default:
		return "Other"
	}
}

// Frame is the unit of exchange between the two endpoints of a pair.
// The Local driver never inspects Payload's contents beyond routing on
// Type/Subclass; it is opaque media, text, or control data owned by the
// switch.
type Frame struct {
	Type     FrameType
	Subclass ControlSubclass
	Payload  []byte
	Digit    rune
	Duration int // milliseconds, for DTMF end frames
	Cause    int // hangup cause, for ControlHangup frames
}
