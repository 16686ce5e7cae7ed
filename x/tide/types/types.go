package types

import (
	"fmt"
	"strings"
)

const (
	RoleGuardian   = "guardian"
	RoleFoundation = "foundation"
	RoleAuditor    = "auditor"
)

// PauseCouncilMember stores a council key and role.
type PauseCouncilMember struct {
	Address string `json:"address"`
	Role    string `json:"role"`
}

// PauseCouncilConfig defines who may trigger an emergency protocol pause
// and how many of them must sign.
type PauseCouncilConfig struct {
	Threshold int                  `json:"threshold"`
	Members   []PauseCouncilMember `json:"members"`
}

func (c PauseCouncilConfig) Validate() error {
	if len(c.Members) < 3 {
		return fmt.Errorf("pause council requires at least 3 members, got %d", len(c.Members))
	}
	if c.Threshold <= len(c.Members)/2 {
		return fmt.Errorf("pause council threshold %d must be a majority of %d members", c.Threshold, len(c.Members))
	}
	if c.Threshold > len(c.Members) {
		return fmt.Errorf("pause council threshold %d exceeds member count %d", c.Threshold, len(c.Members))
	}

	seen := make(map[string]struct{}, len(c.Members))
	for _, member := range c.Members {
		addr := strings.TrimSpace(member.Address)
		role := strings.TrimSpace(strings.ToLower(member.Role))
		if addr == "" {
			return fmt.Errorf("pause council member address cannot be empty")
		}
		if _, exists := seen[addr]; exists {
			return fmt.Errorf("duplicate council member address: %s", addr)
		}
		seen[addr] = struct{}{}

		switch role {
		case RoleGuardian, RoleFoundation, RoleAuditor:
		default:
			return fmt.Errorf("unsupported council role: %s", member.Role)
		}
	}
	return nil
}

// MsgPauseProtocol is the emergency command to freeze deposits and
// activations across every listing.
type MsgPauseProtocol struct {
	Requester string   `json:"requester"`
	Reason    string   `json:"reason"`
	Signers   []string `json:"signers"`
}

func (m MsgPauseProtocol) ValidateBasic() error {
	if strings.TrimSpace(m.Requester) == "" {
		return fmt.Errorf("requester cannot be empty")
	}
	if strings.TrimSpace(m.Reason) == "" {
		return fmt.Errorf("pause reason cannot be empty")
	}
	if len(m.Signers) == 0 {
		return fmt.Errorf("pause request requires signers")
	}
	return nil
}

// ProtocolConfig is the protocol-wide state the launch module consults on
// every deposit and activation: the global pause flag and where protocol
// fees go.
type ProtocolConfig struct {
	TreasuryAddress   string   `json:"treasury_address"`
	Paused            bool     `json:"paused"`
	PausedReason      string   `json:"paused_reason,omitempty"`
	PausedBy          []string `json:"paused_by,omitempty"`
	PausedByRequester string   `json:"paused_by_requester,omitempty"`
	PausedAtHeight    int64    `json:"paused_at_height,omitempty"`
	PausedAtUnix      int64    `json:"paused_at_unix,omitempty"`
}
