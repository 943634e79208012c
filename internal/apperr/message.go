package apperr

import (
	"errors"
	"fmt"
	"time"
)

// UserMessage renders err as plain chat text. It never includes internal error details.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "❌ Something went wrong. Please try again later."
	}

	switch e.Kind {
	case KindRateLimited:
		msg := "⏰ You've reached your daily limit for this command."
		if e.RetryAfter > 0 {
			msg += fmt.Sprintf(" Try again in %s", FormatDuration(e.RetryAfter))
		} else {
			msg += " Try again tomorrow"
		}
		return msg + " or contact an admin for unlimited access."
	case KindInvalidInput:
		if e.Err != nil {
			return "❌ " + e.Err.Error()
		}
		return "❌ Invalid command arguments."
	case KindAccessDenied:
		return "❌ I don't have access to that chat, or you lack the required rights."
	case KindStoreUnavailable:
		return "❌ Sorry, I can't reach my database right now. Please try again later."
	case KindNotFound:
		return "❌ Nothing found."
	default:
		return "❌ Something went wrong. Please try again later."
	}
}

// FormatDuration renders d as "45s", "12m 5s" or "3h 20m".
func FormatDuration(d time.Duration) string {
	seconds := int(d.Round(time.Second) / time.Second)
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}
