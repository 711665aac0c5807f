package domain

// RedirectReason names why a redirect was issued. It is carried into logs
// and activity records.
type RedirectReason string

const (
	ReasonNone       RedirectReason = ""
	ReasonRoot       RedirectReason = "root"
	ReasonClientHome RedirectReason = "client_home"
	ReasonLogin      RedirectReason = "login"
	ReasonLoginFlag  RedirectReason = "login_flag"
)

// RedirectDecision is computed per request and never persisted.
type RedirectDecision struct {
	ShouldRedirect bool           `json:"should_redirect"`
	Target         string         `json:"target_url,omitempty"`
	Reason         RedirectReason `json:"reason,omitempty"`
}

// NoRedirect lets the request fall through to normal handling.
func NoRedirect() RedirectDecision { return RedirectDecision{} }

// RedirectTo issues a redirect to target.
func RedirectTo(target string, reason RedirectReason) RedirectDecision {
	return RedirectDecision{ShouldRedirect: true, Target: target, Reason: reason}
}
