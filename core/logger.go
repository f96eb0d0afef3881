package core

// Person identifies who triggered a logged event.
type Person struct {
	ID       string
	Username string
	Email    string
}

// Logger is any leveled logger.
// Accepted args: error, map[string]interface{}, Person (at most one).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
