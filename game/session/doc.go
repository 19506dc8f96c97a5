// Package session provides session management for the driving tour.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Short random session IDs
//   - File persistence of the run state
//   - Cleanup of idle sessions
//
// Manager is the main session manager. Each session owns its own
// TourEngine; the manager never touches engine state itself.
//
// Persistence:
//
// FilePersistence writes one JSON file per session holding the tour id and
// the engine's RunState. Loading rebuilds the engine from the tour file and
// installs the saved state, which rebuilds the path. Mini-game rounds are
// transient and are not saved.
//
// Usage:
//
//	store, err := session.NewFilePersistence("data/sessions", configMgr)
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(logger, store)
//	_ = manager.LoadPersistedSessions()
//
//	sess, err := manager.Create("", "classic", tour)
package session
