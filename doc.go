// Package blockstage is a frame-driven runtime for a Scratch-style block
// editor.
//
// Sprites carry programs built from command blocks: motion (move, turn,
// go to), looks (say, think) and control (repeat, if, if/else). An
// [Engine] runs those programs against a shared [Store] while a [Physics]
// loop advances free motion and bounces sprites off each other. Everything
// is driven by one [Scheduler] clock, so a run is fully deterministic for a
// given sequence of frame lengths.
//
// # Quick start
//
// A [Stage] wires the pieces together. Build a program, start it, and call
// [Stage.Update] once per frame:
//
//	st := blockstage.NewStage(blockstage.DefaultTuning(), nil)
//	defer st.Close()
//
//	cat := st.Store.ActiveSprite()
//	st.Store.SetBlocks(cat, []blockstage.Block{
//		blockstage.NewBlock(blockstage.BlockRepeat, blockstage.Num(4)).WithChildren(
//			blockstage.NewBlock(blockstage.BlockMove, blockstage.Num(20)),
//			blockstage.NewBlock(blockstage.BlockTurnRight, blockstage.Num(90)),
//		),
//	})
//	st.RunAll()
//	for st.Engine.State().IsPlaying {
//		st.Update(time.Second / 60)
//	}
//
// Headless programs can use [Stage.Run] instead, which ticks in real time
// until its context is done.
//
// # Programs
//
// A [Block] tree is stored per sprite in a [Program], an arena keyed by
// block id. Editing goes through the store ([Store.AddBlock],
// [Store.MoveBlock], [Store.UpdateBlockParams], [Store.DeleteBlock]) so
// that ownership and cycle checks hold across sprites. Params are loosely
// typed ([Param]); a block whose params do not parse is logged and skipped
// rather than failing the run.
//
// # Timing
//
// Movement and turns animate over several frames with durations derived
// from [AnimationTuning]. Speech holds for its duration, repeat iterations
// are separated by a short delay, and every block is followed by a small
// gap. [Stage.StopAll] cancels all of it at once and returns sprites to
// the positions they had when [Stage.RunAll] started.
//
// # Front ends
//
// The preview package renders a stage with [Ebitengine]. The observer
// package serves it to an external authoring UI over a websocket, and trace
// records frame snapshots to a compressed log. Audio synthesises the
// collision sound with [beep].
//
// [Ebitengine]: https://ebitengine.org
// [beep]: https://github.com/gopxl/beep
package blockstage
