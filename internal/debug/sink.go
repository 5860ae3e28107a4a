package debug

// Sink routes leveled messages of library code to the debug output.
// It satisfies motion.Logger.
type Sink struct{}

func (Sink) Debugf(format string, args ...interface{}) { Verbose(format, args...) }
func (Sink) Infof(format string, args ...interface{})  { Live(format, args...) }
func (Sink) Warnf(format string, args ...interface{})  { Warn(format, args...) }
func (Sink) Errorf(format string, args ...interface{}) { printf(LevelInfo, "[ERROR] "+format, args...) }
