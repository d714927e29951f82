package bugs

import (
	"errors"
	"strings"
)

const (
	StatusUnderReview = "review"
	StatusInProgress  = "inprogress"
	StatusFixed       = "fixed"
	StatusInvalid     = "invalid"
	StatusWontFix     = "wontfix"
)

var ErrUnknownStatus = errors.New("unknown bug status")

// Status describes how a report in a given state is shown and what the
// reporter is told when it is reached.
type Status struct {
	Key          string
	Label        string
	Color        int
	Notification string
}

var statuses = map[string]Status{
	StatusUnderReview: {
		Key:          StatusUnderReview,
		Label:        "🔍 Under Review",
		Color:        0xFF0000,
		Notification: "Your bug report status has been updated.",
	},
	StatusInProgress: {
		Key:          StatusInProgress,
		Label:        "🔧 In Progress",
		Color:        0x3498DB,
		Notification: "Your bug report is now being worked on by our team.",
	},
	StatusFixed: {
		Key:          StatusFixed,
		Label:        "✅ Fixed",
		Color:        0x2ECC71,
		Notification: "Your bug report has been resolved! The fix will be available in the next update.",
	},
	StatusInvalid: {
		Key:          StatusInvalid,
		Label:        "❌ Invalid",
		Color:        0xE74C3C,
		Notification: "Your bug report has been marked as invalid. This might be because we couldn't reproduce it or it was not actually a bug.",
	},
	StatusWontFix: {
		Key:          StatusWontFix,
		Label:        "⏭️ Won't Fix",
		Color:        0x95A5A6,
		Notification: "Your bug report has been reviewed, but we've decided not to implement a fix at this time.",
	},
}

// ActionStatuses are the transitions offered as buttons, in display order.
var ActionStatuses = []string{StatusInProgress, StatusFixed, StatusInvalid, StatusWontFix}

// AllStatuses lists every status in display order.
var AllStatuses = []string{StatusUnderReview, StatusInProgress, StatusFixed, StatusInvalid, StatusWontFix}

func Lookup(key string) (Status, error) {
	status, ok := statuses[key]
	if !ok {
		return Status{}, ErrUnknownStatus
	}
	return status, nil
}

const buttonPrefix = "bug_"

// ButtonID builds the component custom ID for a status button.
func ButtonID(status, reportID string) string {
	return buttonPrefix + status + "_" + reportID
}

// IsButtonID reports whether a component custom ID belongs to a bug report.
func IsButtonID(customID string) bool {
	return strings.HasPrefix(customID, buttonPrefix)
}

// ParseButtonID splits a custom ID of the form bug_<status>_<reportID>.
func ParseButtonID(customID string) (status, reportID string, err error) {
	rest, ok := strings.CutPrefix(customID, buttonPrefix)
	if !ok {
		return "", "", ErrUnknownStatus
	}
	status, reportID, ok = strings.Cut(rest, "_")
	if !ok || reportID == "" {
		return "", "", ErrUnknownStatus
	}
	if _, err := Lookup(status); err != nil {
		return "", "", err
	}
	return status, reportID, nil
}
