package users

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/printkeeper/internal/cryptox"
)

// Outcome tags how far a payload can be trusted.
type Outcome int

const (
	Unrecoverable Outcome = iota
	Recovered
	Trusted
)

func (o Outcome) String() string {
	switch o {
	case Trusted:
		return "trusted"
	case Recovered:
		return "recovered"
	default:
		return "unrecoverable"
	}
}

// Decoded is a decoder result. Payload is normalized JSON shaped like the
// kind's plaintext form, e.g. {"users":{...}}.
type Decoded struct {
	Outcome Outcome
	Payload json.RawMessage
	Reason  string
}

// BlobKind describes one remote blob: the canonical field holding its
// content, field aliases used by older writers, and the JSON shape ('{' or
// '[') that field must have.
type BlobKind struct {
	Name    string
	Field   string
	Aliases []string
	Shape   byte
}

var (
	DirectoryKind = BlobKind{Name: "users", Field: "users", Shape: '{'}
	LogKind       = BlobKind{Name: "access_logs", Field: "logs", Aliases: []string{"access_logs"}, Shape: '['}
)

func (k BlobKind) fields() []string {
	return append([]string{k.Field}, k.Aliases...)
}

// PayloadDecoder is one strategy for reading a stored blob.
type PayloadDecoder interface {
	Name() string
	Decode(raw []byte, kind BlobKind, keys []cryptox.Key) Decoded
}

// DefaultDecoders returns the strategies in precedence order.
func DefaultDecoders() []PayloadDecoder {
	return []PayloadDecoder{TrustedDecoder{}, PlaintextDecoder{}, FieldCipherDecoder{}}
}

// Decode runs decoders in order and returns the first Trusted or Recovered
// result. It never panics on malformed input.
func Decode(decoders []PayloadDecoder, raw []byte, kind BlobKind, keys []cryptox.Key) Decoded {
	var reasons []string
	for _, d := range decoders {
		res := d.Decode(raw, kind, keys)
		if res.Outcome != Unrecoverable {
			return res
		}
		if res.Reason != "" {
			reasons = append(reasons, d.Name()+": "+res.Reason)
		}
	}
	return Decoded{Outcome: Unrecoverable, Reason: fmt.Sprint(reasons)}
}

// Envelope is the current at-rest scheme: an EncryptedBlob plus an outer
// HMAC over its compact JSON, flagged with _encrypted.
type Envelope struct {
	Encrypted bool   `json:"_encrypted"`
	MAC       string `json:"_hmac"`
	cryptox.EncryptedBlob
}

// SealEnvelope encrypts payload under key into envelope JSON.
func SealEnvelope(payload any, key cryptox.Key) ([]byte, error) {
	blob, err := cryptox.SealBlob(payload, key)
	if err != nil {
		return nil, err
	}
	composite, err := json.Marshal(blob)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Encrypted:     true,
		MAC:           cryptox.ComputeIntegrityTag(string(composite), key),
		EncryptedBlob: *blob,
	})
}

// TrustedDecoder opens envelopes. A payload opened with the live key is
// Trusted; one that needed an older key is Recovered so it gets re-sealed.
type TrustedDecoder struct{}

func (TrustedDecoder) Name() string { return "envelope" }

func (TrustedDecoder) Decode(raw []byte, kind BlobKind, keys []cryptox.Key) Decoded {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || !env.Encrypted || env.Data == "" {
		return Decoded{Reason: "not an encrypted envelope"}
	}
	composite, err := json.Marshal(env.EncryptedBlob)
	if err != nil {
		return Decoded{Reason: err.Error()}
	}

	for i, k := range keys {
		if !cryptox.VerifyIntegrityTag(string(composite), env.MAC, k) {
			continue
		}
		var inner json.RawMessage
		if err := cryptox.OpenBlob(&env.EncryptedBlob, k, &inner); err != nil {
			continue
		}
		payload, ok := normalize(inner, kind)
		if !ok {
			return Decoded{Reason: "decrypted payload has unexpected shape"}
		}
		if i == 0 {
			return Decoded{Outcome: Trusted, Payload: payload}
		}
		return Decoded{Outcome: Recovered, Payload: payload, Reason: "opened with a legacy key"}
	}
	return Decoded{Reason: "envelope failed integrity check under every key"}
}

// PlaintextDecoder accepts legacy unencrypted payloads such as
// {"users":{...}} or {"logs":[...]}.
type PlaintextDecoder struct{}

func (PlaintextDecoder) Name() string { return "plaintext" }

func (PlaintextDecoder) Decode(raw []byte, kind BlobKind, _ []cryptox.Key) Decoded {
	payload, ok := normalize(raw, kind)
	if !ok {
		return Decoded{Reason: "no plaintext " + kind.Field + " field"}
	}
	return Decoded{Outcome: Recovered, Payload: payload, Reason: "legacy plaintext payload"}
}

// FieldCipherDecoder handles the older per-field scheme where only the
// content field is a ciphertext string and the rest is plaintext.
type FieldCipherDecoder struct{}

func (FieldCipherDecoder) Name() string { return "field-cipher" }

func (FieldCipherDecoder) Decode(raw []byte, kind BlobKind, keys []cryptox.Key) Decoded {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return Decoded{Reason: "not a JSON object"}
	}

	for _, f := range kind.fields() {
		var token string
		if err := json.Unmarshal(m[f], &token); err != nil || token == "" {
			continue
		}
		for _, k := range keys {
			var inner json.RawMessage
			if err := cryptox.DecryptPayload(token, k, &inner); err != nil {
				continue
			}
			if !hasShape(inner, kind.Shape) {
				// some writers sealed the whole {"users": ...} object
				if p, ok := normalize(inner, kind); ok {
					var wrapped map[string]json.RawMessage
					if json.Unmarshal(p, &wrapped) == nil {
						inner = wrapped[kind.Field]
					}
				}
			}
			if !hasShape(inner, kind.Shape) {
				continue
			}
			delete(m, f)
			m[kind.Field] = inner
			out, err := json.Marshal(m)
			if err != nil {
				return Decoded{Reason: err.Error()}
			}
			return Decoded{Outcome: Recovered, Payload: out, Reason: "legacy per-field ciphertext"}
		}
		return Decoded{Reason: "field " + f + " did not decrypt under any key"}
	}
	return Decoded{Reason: "no ciphertext field"}
}

// normalize checks raw is an object whose canonical field (or an alias) has
// the kind's shape, and rewrites aliases to the canonical field.
func normalize(raw []byte, kind BlobKind) (json.RawMessage, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	for _, f := range kind.fields() {
		v, ok := m[f]
		if !ok || !hasShape(v, kind.Shape) {
			continue
		}
		for _, a := range kind.fields() {
			delete(m, a)
		}
		m[kind.Field] = v
		out, err := json.Marshal(m)
		if err != nil {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

func hasShape(v json.RawMessage, shape byte) bool {
	t := bytes.TrimSpace(v)
	return len(t) > 0 && t[0] == shape
}
