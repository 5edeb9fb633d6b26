package redditclient

import (
	"strings"

	"cultivator/internal/util"
)

// FailureKind classifies a rejected post or vote.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureRateLimited    FailureKind = "rate_limited"
	FailurePolicyRejected FailureKind = "policy_rejected"
	FailureCaptcha        FailureKind = "captcha"
	FailureUnknown        FailureKind = "unknown"
)

// Error codes the platform uses when a thread or community refuses the action.
var policyCodes = []string{
	"THREAD_LOCKED",
	"TOO_OLD",
	"DELETED_COMMENT",
	"DELETED_LINK",
	"DELETED_THING",
	"SUBREDDIT_NOTALLOWED",
	"SUBREDDIT_NOEXIST",
	"NOT_ALLOWED",
	"USER_BLOCKED",
	"BANNED_FROM_SUBREDDIT",
	"RESTRICTED",
	"NO_LINKS",
}

// Classify maps platform error strings to a FailureKind. Rate limiting wins over
// captcha, which wins over policy rejections.
func Classify(errs []string) FailureKind {
	if len(errs) == 0 {
		return FailureUnknown
	}
	joined := strings.ToUpper(strings.Join(errs, " | "))
	switch {
	case strings.Contains(joined, "RATELIMIT") || strings.Contains(joined, "429"):
		return FailureRateLimited
	case strings.Contains(joined, "CAPTCHA"):
		return FailureCaptcha
	}
	if util.ContainsAnyCaseInsensitive(joined, policyCodes) {
		return FailurePolicyRejected
	}
	return FailureUnknown
}

// Advice is the operator-facing recommendation for a failure kind.
func (k FailureKind) Advice() string {
	switch k {
	case FailureRateLimited:
		return "rate limited by the platform; back off and do not retry this run"
	case FailureCaptcha:
		return "captcha required; the account needs more manual activity before automation"
	case FailurePolicyRejected:
		return "rejected by the thread or community rules; not retryable"
	case FailureUnknown:
		return "action failed for an unrecognized reason"
	}
	return ""
}

// StopsSession reports whether the failure must halt further automated actions.
func (k FailureKind) StopsSession() bool {
	return k == FailureCaptcha || k == FailureRateLimited
}
