package progress

// Tracker receives progress updates from long-running batch work. Callers that
// do not care pass NoopTracker.
type Tracker interface {
	SetMessage(msg string)
	SetTotal(total int64)
	SetDone(n int)
	SetError(err error)
	MarkFinished()
}

type NoopTracker struct{}

var _ Tracker = NoopTracker{}

func (NoopTracker) SetMessage(msg string) {}
func (NoopTracker) SetTotal(total int64)  {}
func (NoopTracker) SetDone(n int)         {}
func (NoopTracker) SetError(err error)    {}
func (NoopTracker) MarkFinished()         {}
