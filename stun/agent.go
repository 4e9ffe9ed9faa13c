package stun

// Compatibility selects which revision of the protocol an Agent accepts.
type Compatibility int

const (
	// CompatRFC3489 accepts both RFC 5389 messages and classic RFC 3489
	// messages without the magic cookie.
	CompatRFC3489 Compatibility = iota

	// CompatRFC5389 rejects messages without the magic cookie.
	CompatRFC5389
)

// String returns the configuration name of the mode.
func (c Compatibility) String() string {
	switch c {
	case CompatRFC3489:
		return "rfc3489"
	case CompatRFC5389:
		return "rfc5389"
	default:
		return "unknown"
	}
}

// Usage is a set of flags that control what the Agent adds to messages.
type Usage uint8

const (
	// UsageAddSoftware appends a SOFTWARE attribute to every response.
	UsageAddSoftware Usage = 1 << iota

	// UsageUseFingerprint appends FINGERPRINT to RFC 5389 responses.
	UsageUseFingerprint
)

// ValidationStatus is the outcome of Agent.Validate.
type ValidationStatus int

const (
	// ValidationSuccess means the message can be processed.
	ValidationSuccess ValidationStatus = iota

	// ValidationUnknownRequestAttribute means a request carries
	// comprehension-required attributes the agent does not know. The
	// parsed message is returned so a 420 response can be built.
	ValidationUnknownRequestAttribute

	// ValidationMalformed means the packet is not a well-formed STUN
	// message for the configured compatibility mode.
	ValidationMalformed

	// ValidationFailed covers everything else: bad FINGERPRINT,
	// responses nobody asked for, unknown attributes outside requests.
	ValidationFailed
)

var validationNames = [...]string{
	ValidationSuccess:                 "success",
	ValidationUnknownRequestAttribute: "unknown request attribute",
	ValidationMalformed:               "malformed",
	ValidationFailed:                  "failed",
}

func (s ValidationStatus) String() string {
	if int(s) < len(validationNames) {
		return validationNames[s]
	}
	return "invalid"
}

// AgentConfig is the one-time configuration of an Agent.
type AgentConfig struct {
	// KnownAttributes lists the comprehension-required attribute types
	// the agent understands. Any other type below 0x8000 in a request
	// triggers a 420 response.
	KnownAttributes []uint16

	Compatibility Compatibility
	Usage         Usage

	// Software is the SOFTWARE value used with UsageAddSoftware.
	Software string
}

// Agent validates STUN messages and builds responses.
//
// An Agent is immutable once created and safe for concurrent use.
type Agent struct {
	known    map[uint16]struct{}
	compat   Compatibility
	usage    Usage
	software string
}

// NewAgent returns an Agent configured with cfg.
func NewAgent(cfg AgentConfig) *Agent {
	known := make(map[uint16]struct{}, len(cfg.KnownAttributes))
	for _, t := range cfg.KnownAttributes {
		known[t] = struct{}{}
	}
	return &Agent{
		known:    known,
		compat:   cfg.Compatibility,
		usage:    cfg.Usage,
		software: cfg.Software,
	}
}

// Compatibility returns the mode the agent was configured with.
func (a *Agent) Compatibility() Compatibility { return a.compat }

// Validate parses b and checks it against the agent's policy.
//
// The returned message is nil when the status is ValidationMalformed.
func (a *Agent) Validate(b []byte) (*Message, ValidationStatus) {
	msg, err := Parse(b)
	if err != nil {
		return nil, ValidationMalformed
	}
	// A datagram carries exactly one message.
	if HeaderLen+int(msg.Length) != len(b) {
		return nil, ValidationMalformed
	}
	if !msg.HasCookie() && a.compat == CompatRFC5389 {
		return nil, ValidationMalformed
	}
	if msg.HasCookie() && !checkFingerprint(b, msg) {
		return msg, ValidationFailed
	}

	// The server never sends requests, so every response is unmatched.
	if msg.Class == ClassSuccessResponse || msg.Class == ClassErrorResponse {
		return msg, ValidationFailed
	}

	if len(a.UnknownAttributes(msg)) > 0 {
		if msg.IsRequest() {
			return msg, ValidationUnknownRequestAttribute
		}
		return msg, ValidationFailed
	}
	return msg, ValidationSuccess
}

// UnknownAttributes returns the distinct comprehension-required
// attribute types of msg that the agent does not know, in message order.
func (a *Agent) UnknownAttributes(msg *Message) []uint16 {
	var unknown []uint16
	seen := make(map[uint16]struct{})
	for _, attr := range msg.Attributes {
		if !ComprehensionRequired(attr.Type) {
			continue
		}
		if _, ok := a.known[attr.Type]; ok {
			continue
		}
		if _, dup := seen[attr.Type]; dup {
			continue
		}
		seen[attr.Type] = struct{}{}
		unknown = append(unknown, attr.Type)
	}
	return unknown
}

// InitResponse starts a success response to req.
func (a *Agent) InitResponse(req *Message) *Message {
	return a.initReply(req, ClassSuccessResponse)
}

// InitError starts an error response to req carrying ERROR-CODE.
func (a *Agent) InitError(req *Message, code ErrorCode) *Message {
	resp := a.initReply(req, ClassErrorResponse)
	resp.Attributes = append(resp.Attributes, buildErrorCodeAttr(code))
	return resp
}

// BuildUnknownAttributesError builds a 420 response to req listing the
// attributes the agent does not understand.
func (a *Agent) BuildUnknownAttributesError(req *Message) *Message {
	resp := a.InitError(req, CodeUnknownAttribute)
	resp.Attributes = append(resp.Attributes,
		buildUnknownAttributesAttr(a.UnknownAttributes(req), !req.HasCookie()))
	return resp
}

// initReply copies the identity of req into a new message of class.
// Cookie is echoed so classic clients get their full 128-bit ID back.
func (a *Agent) initReply(req *Message, class int) *Message {
	return &Message{
		Method:        req.Method,
		Class:         class,
		Cookie:        req.Cookie,
		TransactionID: req.TransactionID,
	}
}

// Finish appends the trailing attributes selected by the usage flags and
// encodes msg into dst. It returns the final message length.
func (a *Agent) Finish(msg *Message, dst []byte) (int, error) {
	if a.usage&UsageAddSoftware != 0 && a.software != "" {
		msg.Attributes = append(msg.Attributes, buildSoftwareAttr(a.software))
	}

	withFingerprint := a.usage&UsageUseFingerprint != 0 && msg.HasCookie()
	if withFingerprint {
		msg.Add(AttrFingerprint, make([]byte, 4))
	}

	n, err := msg.MarshalTo(dst)
	if err != nil {
		return 0, err
	}
	if withFingerprint {
		writeFingerprint(dst[:n])
	}
	return n, nil
}
