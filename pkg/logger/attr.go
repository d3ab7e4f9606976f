package logger

import "log/slog"

// Attribute helpers keep field names consistent across the codebase so log
// aggregation queries do not have to account for spelling drift.

// Error returns the standard attribute for error values.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Component identifies the subsystem emitting the record.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// UserID tags a record with the acting user.
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

// OrgID tags a record with the organization in scope.
func OrgID(id string) slog.Attr {
	return slog.String("organization_id", id)
}

// Event tags billing webhook records with the provider event kind.
func Event(kind string) slog.Attr {
	return slog.String("event", kind)
}
