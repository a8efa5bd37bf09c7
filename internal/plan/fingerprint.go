package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/aspect/internal/trace"
)

// fingerprintDomain separates plan hashes from any other SHA-256 use of
// the same bytes. Bump the version if Value's shape changes.
const fingerprintDomain = "aspect/plan/v1"

// Value renders the plan as a trace value, rules in registration order:
//
//	{"rules":[{"hooks":[{"action":"trace","on":"before"}],"id":"audit","select":"Perform"}]}
//
// Hook values appear only for the return and invoke actions.
func (p *Plan) Value() trace.Object {
	rules := make(trace.Array, len(p.Rules))
	for i, r := range p.Rules {
		hooks := make(trace.Array, len(r.Hooks))
		for j, h := range r.Hooks {
			hook := trace.Object{
				"on":     trace.String(h.On.String()),
				"action": trace.String(h.Action),
			}
			if h.Action == ActionReturn || h.Action == ActionInvoke {
				hook["value"] = trace.ValueOf(h.Value)
			}
			if h.Message != "" {
				hook["message"] = trace.String(h.Message)
			}
			hooks[j] = hook
		}
		rules[i] = trace.Object{
			"id":     trace.String(r.ID),
			"select": trace.String(r.Select.String()),
			"hooks":  hooks,
		}
	}
	return trace.Object{"rules": rules}
}

// Fingerprint returns the hex SHA-256 of the plan's canonical JSON,
// prefixed with a domain tag and a NUL separator. Two plans with the same
// rules in the same order share a fingerprint.
func (p *Plan) Fingerprint() (string, error) {
	data, err := trace.MarshalCanonical(p.Value())
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
