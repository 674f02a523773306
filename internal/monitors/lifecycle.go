package monitors

// lifecycle holds the Init/Start/Finish flags shared by every monitor.
type lifecycle struct {
	isInit     bool
	isStarted  bool
	isFinished bool
}

// IsInit reports whether Init succeeded.
func (l *lifecycle) IsInit() bool { return l.isInit }

// IsStarted reports whether the monitor is emitting.
func (l *lifecycle) IsStarted() bool { return l.isStarted }

// IsFinished reports whether Finish has run.
func (l *lifecycle) IsFinished() bool { return l.isFinished }

// canFinish reports whether Finish has work to do and marks the monitor
// finished if so.
func (l *lifecycle) canFinish() bool {
	if l.isFinished || !(l.isInit || l.isStarted) {
		return false
	}
	l.isInit = false
	l.isStarted = false
	l.isFinished = true
	return true
}
