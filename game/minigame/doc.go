// Package minigame implements the games a stop can host: memory match,
// quiz, sequence ordering and a tile puzzle.
//
// Every game satisfies engine.MiniGame. The engine binds the completion
// callback through StartStage; games only call it once, when solved, and
// know nothing about stops or sessions.
//
//	g, err := minigame.New(cfg, minigame.Options{})
//	if err != nil {
//		return err
//	}
//	if err := eng.StartStage("game:"+cfg.ID, g); err != nil {
//		return err
//	}
//	err = g.Apply(minigame.Move{Action: "answer", Index: 2})
package minigame
