package websocket

import (
	"slices"
)

// clientWhitelist contains the set of actions that clients are allowed to send.
type clientWhitelist struct {
	allowedActions []string
}

// NewClientWhitelist creates a new whitelist with the given allowed actions.
func NewClientWhitelist(allowedActions ...string) *clientWhitelist {
	validActions := make([]string, 0, len(allowedActions))
	for _, action := range allowedActions {
		if action != "" {
			validActions = append(validActions, action)
		}
	}

	return &clientWhitelist{
		allowedActions: validActions,
	}
}

// IsAllowed checks if an action is in the whitelist.
func (w *clientWhitelist) IsAllowed(action string) bool {
	if action == "" {
		return false
	}
	return slices.Contains(w.allowedActions, action)
}

// Actions returns the allowed actions.
func (w *clientWhitelist) Actions() []string {
	return slices.Clone(w.allowedActions)
}

// DefaultClientWhitelist allows every synchronizer action.
func DefaultClientWhitelist() *clientWhitelist {
	return NewClientWhitelist(ActionRebind, ActionLoad, ActionSend, ActionEdit, ActionDelete)
}
