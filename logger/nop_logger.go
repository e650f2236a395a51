package logger

// Nop discards everything; used when callers pass no logger.
type Nop struct{}

func (Nop) Debug(...interface{}) {}
func (Nop) Info(...interface{})  {}
func (Nop) Warn(...interface{})  {}
func (Nop) Error(...interface{}) {}
