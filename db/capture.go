package db

import "sync"

const captureSeparator = "[SQL] -----------------------"

// CaptureContext redirects a session's query trace into a private buffer
// for the duration of a scope. At most one capture may be active on a
// session; a second attachment fails fast rather than corrupting the
// buffer. End restores the trace sink and emits the captured lines as one
// bracketed block through the logging collaborator.
type CaptureContext struct {
	name  string
	s     *Session
	lines []string
	once  sync.Once
}

// CaptureSQL attaches a capture to the session. The returned context must
// be ended, normally with defer, on every exit path.
func (s *Session) CaptureSQL(name string) (*CaptureContext, error) {
	s.traceMu.Lock()
	defer s.traceMu.Unlock()

	if s.capture != nil {
		return nil, errorf(KindConfiguration, "capture sql",
			"capture %q already active on session %s", s.capture.name, s.role)
	}

	c := &CaptureContext{name: name, s: s}
	s.capture = c
	return c, nil
}

// End detaches the capture and emits the block. Exactly-once: repeated
// calls after the first do nothing, so it is safe under defer combined
// with explicit early calls.
func (c *CaptureContext) End() {
	c.once.Do(func() {
		c.s.traceMu.Lock()
		if c.s.capture == c {
			c.s.capture = nil
		}
		lines := c.lines
		c.s.traceMu.Unlock()

		log := c.s.cfg.Logger
		emit := func(msg string) {
			log.Info().Msg(msg)
		}

		emit("")
		emit("")
		emit(captureSeparator)
		emit("[SQL] begin capture: " + c.name)
		emit(captureSeparator)
		for _, line := range lines {
			emit("[SQL:" + c.name + "] " + line)
		}
		emit(captureSeparator)
		emit("[SQL] end capture: " + c.name)
		emit(captureSeparator)
		emit("")
		emit("")
	})
}
