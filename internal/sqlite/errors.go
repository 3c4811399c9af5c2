package sqlite

import "strings"

// modernc reports constraint failures only through the message text.
const (
	foreignKeyFailed = "FOREIGN KEY constraint failed"
	uniqueFailed     = "UNIQUE constraint failed"
	primaryKeyFailed = "PRIMARY KEY constraint failed"
)

func constraintFailed(err error, kinds ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, kind := range kinds {
		if strings.Contains(msg, kind) {
			return true
		}
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	return constraintFailed(err, foreignKeyFailed)
}

// isUniqueViolation also matches TEXT primary keys, which sqlite reports as
// either kind depending on version.
func isUniqueViolation(err error) bool {
	return constraintFailed(err, uniqueFailed, primaryKeyFailed)
}
