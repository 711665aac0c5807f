package domain

import (
	"fmt"
	"strings"
)

// FlagState is the lifecycle of the one-shot login redirect flag.
//
//	unset --login success--> set --next client-area request--> consumed
//
// A consumed flag only returns to set on another login.
type FlagState uint8

const (
	FlagUnset FlagState = iota
	FlagSet
	FlagConsumed
)

func (s FlagState) String() string {
	switch s {
	case FlagUnset:
		return "unset"
	case FlagSet:
		return "set"
	case FlagConsumed:
		return "consumed"
	default:
		return fmt.Sprintf("FlagState(%d)", s)
	}
}

// ParseFlagState converts the textual form back into a FlagState.
func ParseFlagState(s string) (FlagState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unset":
		return FlagUnset, nil
	case "set":
		return FlagSet, nil
	case "consumed":
		return FlagConsumed, nil
	default:
		return FlagUnset, fmt.Errorf("unsupported FlagState: %q", s)
	}
}

// MarshalText stores the flag by name.
func (s FlagState) MarshalText() ([]byte, error) {
	if s > FlagConsumed {
		return nil, fmt.Errorf("unsupported FlagState: %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *FlagState) UnmarshalText(b []byte) error {
	v, err := ParseFlagState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// SessionRecord is the gateway's view of one host session.
type SessionRecord struct {
	ID            string    `json:"id"`
	LoggedIn      bool      `json:"logged_in"`
	LoginRedirect FlagState `json:"login_redirect"`
	UpdatedUnix   int64     `json:"updated"`
}
