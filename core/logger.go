package core

// Logger is implemented by log services.
// args may contain errors, map[string]interface{} extras and at most one Person.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the guardian (or device owner) a log entry relates to.
type Person struct {
	ID       string
	Username string
	Email    string
}
