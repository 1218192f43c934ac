package impact

import (
	"fmt"
	"strings"
)

// Policy selects how calls between functions of the same component are
// reconstructed, and therefore which internal calls cause marking.
type Policy uint8

const (
	// PolicyExternalCallAction reconstructs every call to a served function
	// as an external call. Only calls crossing components are relevant.
	PolicyExternalCallAction Policy = iota
	// PolicyInternalCallAction reconstructs internal calls to served
	// functions as internal call actions; such calls are relevant too.
	PolicyInternalCallAction
	// PolicyInternalAction collapses internal calls to served functions
	// into plain internal actions.
	PolicyInternalAction
)

var policyNames = map[Policy]string{
	PolicyExternalCallAction: "external-call-action",
	PolicyInternalCallAction: "internal-call-action",
	PolicyInternalAction:     "internal-action",
}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("policy(%d)", uint8(p))
}

// ParsePolicy parses the configuration spelling of a policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "external-call-action", "always-external":
		return PolicyExternalCallAction, nil
	case "internal-call-action":
		return PolicyInternalCallAction, nil
	case "internal-action":
		return PolicyInternalAction, nil
	}
	return 0, fmt.Errorf("unknown reconstruction policy %q", s)
}
