// Package tui provides the terminal views for quarry.
//
// The progress view is a read-only bubbletea program that follows a run as
// the engine reports it:
//   - The current round and how many questions it admitted
//   - Duplicates dropped before resolution
//   - Answers recorded so far, split by source
//   - The most recently resolved questions
//
// Users can only quit with 'q' or Ctrl+C.
//
// Usage:
//
//	program, app := tui.NewProgressProgram(maxDepth)
//	emitter := engine.NewEmitter(64)
//	go tui.ForwardEvents(program, emitter.Events())
//
//	go func() {
//	    result := eng.Answer(ctx, question)
//	    emitter.Close()
//	    program.Send(tui.ProgressDoneMsg{})
//	}()
//	program.Run()
//
// TreeFormatter styles the diagnostic tree printed after a run.
package tui
