package cache

// Key builders shared by the read-through middleware and the write-path
// invalidation in the attendance handler. Both sides MUST derive keys through
// these functions; re-deriving the strings at a call site risks a silent
// format drift that makes invalidation miss and leaves stale data visible.

// UserKey builds a user-scoped cache key from a user id and a request URL.
// The trailing "::" is part of the format and is preserved when the key is
// embedded in a date-scoped key.
func UserKey(userID, url string) string {
	return "user:" + userID + ":" + url + "::"
}

// DateKey builds a date-scoped key around an inner user-scoped key.
// The date is an ISO calendar date (YYYY-MM-DD).
func DateKey(date, userKey string) string {
	return "date:" + date + ":" + userKey
}

// SectionDateKey is the direct key for one grade section's attendance on one
// date, used by the per-section GET route and by invalidation.
func SectionDateKey(sectionID, date string) string {
	return "attendance:section:" + sectionID + ":date:" + date
}

// Legacy key spellings. Older builds cached section attendance under these
// formats; invalidation keeps deleting them so a rolling upgrade cannot serve
// stale entries written before the rollout.
func LegacySectionDateKey(sectionID, date string) string {
	return "attendance:daily:" + sectionID + ":" + date
}

func LegacyDailyKey(date string) string {
	return "daily_attendance_" + date
}
