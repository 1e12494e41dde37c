package logger

// Logger provides structured logging with a component name and context fields
type Logger interface {
	Info(component, message string, fields map[string]interface{})
	Error(component string, err error, fields map[string]interface{})
	Warning(component, message string, fields map[string]interface{})
	Debug(component, message string, fields map[string]interface{})
}

// Nop discards everything. Used by tests and by components built without a logger.
type Nop struct{}

func (Nop) Info(string, string, map[string]interface{})    {}
func (Nop) Error(string, error, map[string]interface{})    {}
func (Nop) Warning(string, string, map[string]interface{}) {}
func (Nop) Debug(string, string, map[string]interface{})   {}

// OrNop returns log, or a Nop logger when log is nil.
func OrNop(log Logger) Logger {
	if log == nil {
		return Nop{}
	}
	return log
}
