package localchan

// ChannelState mirrors the small slice of switch-wide channel state the
// Local driver reads and sets directly (RINGING on forward, DOWN/RING at
// allocation, etc.).
type ChannelState int

const (
	StateDown ChannelState = iota
	StateRing
	StateRinging
	StateUp
	StateBusy
)

// PartyInfo is the authoritative caller/connected/redirecting/dialed party
// record spec.md §4.2 says must be serialized from the originating endpoint
// rather than forwarded as a partial payload.
type PartyInfo struct {
	Number      string
	Name        string
	NumberValid bool
}

// Valid reports whether the party record carries any usable field, matching
// spec.md §4.4's "where A has any valid field" swap precondition.
func (p PartyInfo) Valid() bool {
	return p.NumberValid || p.Name != ""
}

// JitterBufferConfig is threaded from Request's caller down to the A
// endpoint. The core never interprets it; see SPEC_FULL.md's ambient-stack
// note on jitter buffer propagation.
type JitterBufferConfig struct {
	Enabled     bool
	Impl        string
	MaxSize     int
	ResyncThres int
}

// ChannelRef is the opaque endpoint handle the switch supplies to the core,
// realizing spec.md §3's "Endpoint handle (external)".
//
// Thread safety: Lock/Unlock/TryLock guard the fields below; callers outside
// this package must use them around any ChannelRef method that mutates
// state visible to other goroutines.
type ChannelRef interface {
	Name() string

	Lock()
	Unlock()
	TryLock() bool

	State() ChannelState
	SetState(ChannelState)

	// BridgePartner returns the channel this endpoint is bridged to one hop
	// away, or nil if unbridged.
	BridgePartner() ChannelRef
	// BridgeTo records a new bridge partner, used when the switch bridges
	// this endpoint (e.g. the A side to a real caller leg) or when the
	// Optimize-Away Engine splices identity away.
	BridgeTo(ChannelRef)

	QueueFrame(Frame) error
	QueueHangup(cause int) error
	// PendingFrames reports the depth of this endpoint's inbound read
	// queue, used by the Optimize-Away Engine's empty-queue precondition.
	PendingFrames() int
	IsHungUp() bool
	HangupCause() int
	SetHangupCause(int)

	Monitor() any
	SetMonitor(any)
	AudioHooks() []any
	SetAudioHooks([]any)

	CallerParty() PartyInfo
	SetCallerParty(PartyInfo)
	ConnectedParty() PartyInfo
	SetConnectedParty(PartyInfo)
	RedirectingParty() PartyInfo
	SetRedirectingParty(PartyInfo)
	DialedParty() PartyInfo
	SetDialedParty(PartyInfo)

	// Variables returns the channel variable store in insertion order, as
	// spec.md §4.5's Call operation must preserve insertion order on copy.
	Variables() []Variable
	SetVariable(name, value string)
	GetVariable(name string) (string, bool)

	Datastores() []any
	InheritDatastores([]any)

	Context() string
	SetContext(string)
	Extension() string
	SetExtension(string)
	Priority() int
	SetPriority(int)

	AnsweredElsewhere() bool
	SetAnsweredElsewhere(bool)

	AccountCode() string
	SetAccountCode(string)
	Language() string
	SetLanguage(string)
	MusicClass() string
	SetMusicClass(string)
	LinkedID() string
	SetLinkedID(string)

	ConfigureJitterBuffer(JitterBufferConfig)

	// QueryT38State answers a T.38 state query local to this channel,
	// regardless of which driver owns it. Used by query_option's
	// see-through resolution across a bridge-peer hop.
	QueryT38State() ([]byte, error)

	// HasGenerator reports whether an audio generator is currently attached,
	// used by the Frame Forwarder's drop-both-generators check.
	HasGenerator() bool
}

// Variable is one channel variable, kept ordered per spec.md §4.5.
type Variable struct {
	Name  string
	Value string
}

// Switch is the set of capabilities the core requires from the hosting
// switch beyond ChannelRef itself: allocation, masquerade, dialplan lookup,
// and codec negotiation. Exactly the interfaces spec.md §1 calls out as
// "external collaborators... treated as interfaces the core consumes."
type Switch interface {
	// NewChannel allocates a fresh ChannelRef in the given initial state
	// with the given name. Returns an error if allocation fails.
	NewChannel(name string, state ChannelState) (ChannelRef, error)

	// ExtensionExists reports whether (context, extension, priority) is a
	// valid dialplan target.
	ExtensionExists(context, extension string, priority int) bool

	// StartPBX begins dialplan execution on ch at (context, extension,
	// priority) on a new goroutine, returning an error if the switch could
	// not schedule it.
	StartPBX(ch ChannelRef, context, extension string, priority int) error

	// BestCodec negotiates a single codec out of a requested format set.
	BestCodec(requested []string) string

	// Masquerade is the atomic identity splice spec.md §4.4 depends on:
	// into takes over from's bridge membership and identity; from is left
	// a shell the caller is responsible for retiring.
	Masquerade(into, from ChannelRef) error

	// AcquireModuleRef and ReleaseModuleRef pin/unpin the containing module
	// while at least one pair endpoint is alive, per spec.md §3's
	// module_refs field.
	AcquireModuleRef() any
	ReleaseModuleRef(any)

	// DeadlockAvoidance releases self's lock, yields, and reacquires it —
	// the (a) flavor of backoff primitive spec.md §9 requires.
	DeadlockAvoidance(self ChannelRef)
}

// Requestor is the minimal description of whoever asked for the pair, used
// only for logging/attribution; the core does not interpret it further.
type Requestor struct {
	Name string
}
