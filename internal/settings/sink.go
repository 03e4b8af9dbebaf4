package settings

import (
	"snaptext/internal/hotkeys"
	"snaptext/internal/recorder"
	"snaptext/internal/render"
)

// pageSink renders recorder output into the page and forwards pause and
// persist requests. Its methods run under the recorder lock, so they only
// touch the document, the bridge, and the save mailbox.
type pageSink struct {
	c *Controller
}

func (s pageSink) RenderLive(held []string) {
	s.draw(render.PartialView(held), true)
	s.c.publish(recorder.StateRecording, s.c.Persisted())
}

func (s pageSink) RenderFinal(chord hotkeys.Chord) {
	s.c.remember(chord)
	s.draw(render.ChordView(chord, true), false)
	s.c.publish(recorder.StateIdle, chord)
}

func (s pageSink) RenderRejected() {
	s.draw(render.RejectedView(), true)
	s.c.publish(recorder.StateRejected, s.c.Persisted())
}

func (s pageSink) RenderIdle(chord hotkeys.Chord) {
	s.c.remember(chord)
	s.draw(render.ChordView(chord, true), false)
	s.c.publish(recorder.StateIdle, chord)
}

func (s pageSink) PauseGlobal(paused bool) {
	s.c.bridge.PauseGlobalHotkey(paused)
}

func (s pageSink) Persist(chord hotkeys.Chord) {
	s.c.queueSave(chord)
}

func (s pageSink) draw(v render.View, recording bool) {
	s.c.doc.Update(func() {
		render.MarkRecording(s.c.element, recording)
		s.c.renderer.Render(s.c.element, v)
	})
}
