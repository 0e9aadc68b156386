package localchan

import "sync"

// LocalChannel is the concrete ChannelRef the switch adapter hands back
// from NewChannel: a plain mutex-guarded struct in the teacher's style
// (legImpl/bridgeImpl), holding exactly the state spec.md §3's "Endpoint
// handle (external)" enumerates.
type LocalChannel struct {
	mu sync.Mutex

	name  string
	state ChannelState

	bridgePartner ChannelRef

	queue       []Frame
	hungUp      bool
	hangupCause int

	monitor    any
	audioHooks []any

	caller      PartyInfo
	connected   PartyInfo
	redirecting PartyInfo
	dialed      PartyInfo

	vars      []Variable
	varIndex  map[string]int
	datastores []any

	context  string
	ext      string
	priority int

	answeredElsewhere bool
	accountCode       string
	language          string
	musicClass        string
	linkedID          string

	jitterBuf JitterBufferConfig

	generator bool

	// owningPair is the weak back-pointer spec.md §9's Design Notes call
	// for: "each endpoint carrying a weak back-pointer to the pair." Set
	// by Pair.SetA/SetB whenever this channel is bound into a pair's A or B
	// slot; used by Optimize-Away to recognize a bridge partner that is
	// itself another Local pair's endpoint rather than a real far peer.
	owningPair *Pair
}

// NewLocalChannel constructs a LocalChannel with the given name and
// initial state.
func NewLocalChannel(name string, state ChannelState) *LocalChannel {
	return &LocalChannel{
		name:     name,
		state:    state,
		varIndex: make(map[string]int),
	}
}

func (c *LocalChannel) Name() string { return c.name }

func (c *LocalChannel) Lock()          { c.mu.Lock() }
func (c *LocalChannel) Unlock()        { c.mu.Unlock() }
func (c *LocalChannel) TryLock() bool  { return c.mu.TryLock() }

func (c *LocalChannel) State() ChannelState     { return c.state }
func (c *LocalChannel) SetState(s ChannelState) { c.state = s }

func (c *LocalChannel) BridgePartner() ChannelRef    { return c.bridgePartner }
func (c *LocalChannel) BridgeTo(peer ChannelRef)     { c.bridgePartner = peer }

func (c *LocalChannel) QueueFrame(f Frame) error {
	c.queue = append(c.queue, f)
	return nil
}

func (c *LocalChannel) PendingFrames() int { return len(c.queue) }

// DequeueFrame pops the oldest queued frame, for test harnesses and any
// switch-side read-loop driving this channel. Returns false when empty.
func (c *LocalChannel) DequeueFrame() (Frame, bool) {
	if len(c.queue) == 0 {
		return Frame{}, false
	}
	f := c.queue[0]
	c.queue = c.queue[1:]
	return f, true
}

func (c *LocalChannel) QueueHangup(cause int) error {
	c.hungUp = true
	c.hangupCause = cause
	return nil
}

func (c *LocalChannel) IsHungUp() bool { return c.hungUp }

func (c *LocalChannel) HangupCause() int       { return c.hangupCause }
func (c *LocalChannel) SetHangupCause(cause int) { c.hangupCause = cause }

func (c *LocalChannel) Monitor() any         { return c.monitor }
func (c *LocalChannel) SetMonitor(m any)     { c.monitor = m }
func (c *LocalChannel) AudioHooks() []any     { return c.audioHooks }
func (c *LocalChannel) SetAudioHooks(h []any) { c.audioHooks = h }

func (c *LocalChannel) CallerParty() PartyInfo        { return c.caller }
func (c *LocalChannel) SetCallerParty(p PartyInfo)     { c.caller = p }
func (c *LocalChannel) ConnectedParty() PartyInfo      { return c.connected }
func (c *LocalChannel) SetConnectedParty(p PartyInfo)  { c.connected = p }
func (c *LocalChannel) RedirectingParty() PartyInfo    { return c.redirecting }
func (c *LocalChannel) SetRedirectingParty(p PartyInfo) { c.redirecting = p }
func (c *LocalChannel) DialedParty() PartyInfo         { return c.dialed }
func (c *LocalChannel) SetDialedParty(p PartyInfo)     { c.dialed = p }

func (c *LocalChannel) Variables() []Variable {
	out := make([]Variable, len(c.vars))
	copy(out, c.vars)
	return out
}

func (c *LocalChannel) SetVariable(name, value string) {
	if idx, ok := c.varIndex[name]; ok {
		c.vars[idx].Value = value
		return
	}
	c.varIndex[name] = len(c.vars)
	c.vars = append(c.vars, Variable{Name: name, Value: value})
}

func (c *LocalChannel) GetVariable(name string) (string, bool) {
	idx, ok := c.varIndex[name]
	if !ok {
		return "", false
	}
	return c.vars[idx].Value, true
}

func (c *LocalChannel) Datastores() []any { return c.datastores }
func (c *LocalChannel) InheritDatastores(ds []any) {
	c.datastores = append(c.datastores, ds...)
}

func (c *LocalChannel) Context() string      { return c.context }
func (c *LocalChannel) SetContext(s string)  { c.context = s }
func (c *LocalChannel) Extension() string    { return c.ext }
func (c *LocalChannel) SetExtension(s string) { c.ext = s }
func (c *LocalChannel) Priority() int        { return c.priority }
func (c *LocalChannel) SetPriority(p int)    { c.priority = p }

func (c *LocalChannel) AnsweredElsewhere() bool      { return c.answeredElsewhere }
func (c *LocalChannel) SetAnsweredElsewhere(v bool)  { c.answeredElsewhere = v }

func (c *LocalChannel) AccountCode() string     { return c.accountCode }
func (c *LocalChannel) SetAccountCode(s string) { c.accountCode = s }
func (c *LocalChannel) Language() string        { return c.language }
func (c *LocalChannel) SetLanguage(s string)    { c.language = s }
func (c *LocalChannel) MusicClass() string      { return c.musicClass }
func (c *LocalChannel) SetMusicClass(s string)  { c.musicClass = s }
func (c *LocalChannel) LinkedID() string        { return c.linkedID }
func (c *LocalChannel) SetLinkedID(s string)    { c.linkedID = s }

func (c *LocalChannel) ConfigureJitterBuffer(cfg JitterBufferConfig) { c.jitterBuf = cfg }

func (c *LocalChannel) QueryT38State() ([]byte, error) {
	return nil, ErrQueryOptionUnsupported
}

func (c *LocalChannel) HasGenerator() bool     { return c.generator }
func (c *LocalChannel) SetGenerator(v bool)    { c.generator = v }

// OwningPair returns the pair this channel is currently bound into as A or
// B, or nil if it was never bound (a bare stand-in for a real channel) or
// has since been detached.
func (c *LocalChannel) OwningPair() *Pair { return c.owningPair }

func (c *LocalChannel) setOwningPair(p *Pair) { c.owningPair = p }
