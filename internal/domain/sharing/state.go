package sharing

// Actions on a share.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
	ActionRevoke = "revoke"
	ActionExpire = "expire"
)

// transitions maps action -> from status -> resulting status.
var transitions = map[string]map[string]string{
	ActionAccept: {StatusPending: StatusActive},
	ActionReject: {StatusPending: StatusRejected},
	ActionRevoke: {StatusPending: StatusRevoked, StatusActive: StatusRevoked},
	ActionExpire: {StatusActive: StatusExpired},
}

// next returns the status action leads to from status, or
// ErrInvalidTransition.
func next(status, action string) (string, error) {
	to, ok := transitions[action][status]
	if !ok {
		return "", ErrInvalidTransition
	}
	return to, nil
}

// terminal reports whether status admits no further change of any kind.
func terminal(status string) bool {
	switch status {
	case StatusRejected, StatusExpired, StatusRevoked:
		return true
	}
	return false
}
