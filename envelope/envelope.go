// Package envelope defines the single structural type exchanged between
// Kataribe peers. An Envelope is the unit of wire exchange for every RPC
// request, RPC response, RPC error, event, and hello message; the core
// never interprets the Payload field, only the envelope's own fields.
package envelope

import "encoding/json"

// Kind discriminates what an Envelope carries.
type Kind string

const (
	// KindRPCRequest is a request for a remote method to be invoked.
	KindRPCRequest Kind = "rpc_req"
	// KindRPCResponse is a successful reply to a KindRPCRequest.
	KindRPCResponse Kind = "rpc_res"
	// KindRPCError is a failed reply to a KindRPCRequest.
	KindRPCError Kind = "rpc_err"
	// KindEvent is a fire-and-forget payload on a named channel.
	KindEvent Kind = "event"
	// KindHello is the advisory capability announcement sent on connect.
	KindHello Kind = "hello"
)

// Envelope is the JSON-serializable record every transport sends and
// receives. Field names are kept short to match the canonical wire
// format described by the protocol: "v", "ts", "kind", "id", "ch", "p",
// "m", "code", "meta", "feat".
type Envelope struct {
	V    int            `json:"v"`
	TS   int64          `json:"ts"`
	Kind Kind           `json:"kind"`
	ID   string         `json:"id,omitempty"`
	Ch   string         `json:"ch,omitempty"`
	P    any            `json:"p,omitempty"`
	M    string         `json:"m,omitempty"`
	Code string         `json:"code,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`
	Feat []string       `json:"feat,omitempty"`

	// Extra holds any top-level JSON key on a received envelope that
	// isn't one of the fields above. The core never looks at it, but
	// it round-trips through UnmarshalJSON/MarshalJSON so inbound
	// middleware can read a field a newer peer sent and outbound
	// middleware can carry it back out unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

// envelopeFields is Envelope's field set minus Extra, used by
// UnmarshalJSON/MarshalJSON so the known keys get ordinary struct
// tag handling while everything else falls through to Extra.
type envelopeFields struct {
	V    int            `json:"v"`
	TS   int64          `json:"ts"`
	Kind Kind           `json:"kind"`
	ID   string         `json:"id,omitempty"`
	Ch   string         `json:"ch,omitempty"`
	P    any            `json:"p,omitempty"`
	M    string         `json:"m,omitempty"`
	Code string         `json:"code,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`
	Feat []string       `json:"feat,omitempty"`
}

var knownEnvelopeKeys = map[string]bool{
	"v": true, "ts": true, "kind": true, "id": true, "ch": true,
	"p": true, "m": true, "code": true, "meta": true, "feat": true,
}

// UnmarshalJSON decodes the known fields normally, then captures every
// other top-level key into Extra so it survives even though no Go
// field names it.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var fields envelopeFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range knownEnvelopeKeys {
		delete(raw, k)
	}
	if len(raw) == 0 {
		raw = nil
	}

	e.V, e.TS, e.Kind = fields.V, fields.TS, fields.Kind
	e.ID, e.Ch, e.P = fields.ID, fields.Ch, fields.P
	e.M, e.Code, e.Meta, e.Feat = fields.M, fields.Code, fields.Meta, fields.Feat
	e.Extra = raw
	return nil
}

// MarshalJSON encodes the known fields normally, then merges Extra back
// in so unrecognized keys a peer sent survive a decode/re-encode cycle
// unchanged, rather than being dropped on the floor.
func (e Envelope) MarshalJSON() ([]byte, error) {
	fields := envelopeFields{
		V: e.V, TS: e.TS, Kind: e.Kind, ID: e.ID, Ch: e.Ch,
		P: e.P, M: e.M, Code: e.Code, Meta: e.Meta, Feat: e.Feat,
	}
	known, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	if len(e.Extra) == 0 {
		return known, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range e.Extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Clock returns the current wall-clock time in milliseconds since the
// Unix epoch. It is a var so tests can substitute a deterministic clock.
var Clock = func() int64 { return nowMillis() }

// New constructs a minimal envelope of the given kind, stamping the
// protocol version and the sender's wall-clock time. All other fields
// are left for the caller to populate before the envelope is handed to
// the middleware chain.
func New(kind Kind, version int) *Envelope {
	return &Envelope{
		V:    version,
		TS:   Clock(),
		Kind: kind,
	}
}

// IsRPC reports whether kind is one of the three RPC-correlated kinds
// that carry an ID: rpc_req, rpc_res, rpc_err.
func (k Kind) IsRPC() bool {
	switch k {
	case KindRPCRequest, KindRPCResponse, KindRPCError:
		return true
	default:
		return false
	}
}

// RequiresChannel reports whether kind must carry a non-empty Ch field.
func (k Kind) RequiresChannel() bool {
	switch k {
	case KindRPCRequest, KindEvent:
		return true
	default:
		return false
	}
}
