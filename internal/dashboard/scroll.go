package dashboard

import "time"

// ScrollFollowUp is the delay of the second restore after a re-render.
const ScrollFollowUp = 200 * time.Millisecond

// ScrollState keeps the viewport offset steady across re-renders. The offset is
// restored right after new content is set and once more after ScrollFollowUp; scroll
// events in between are not recorded.
type ScrollState struct {
	YBeforeUpdate int
	AutoRestoring bool
}

// Observe records a user scroll position unless a restore is in progress.
func (s *ScrollState) Observe(y int) {
	if !s.AutoRestoring {
		s.YBeforeUpdate = y
	}
}

// Begin is called before content changes.
func (s *ScrollState) Begin(y int) {
	s.Observe(y)
}

// End is called after content changes. It returns the offset to restore now and
// marks a follow-up restore as pending.
func (s *ScrollState) End() int {
	s.AutoRestoring = true
	return s.YBeforeUpdate
}

// Finish is the follow-up restore. It returns the offset to restore and re-enables
// recording.
func (s *ScrollState) Finish() int {
	s.AutoRestoring = false
	return s.YBeforeUpdate
}
