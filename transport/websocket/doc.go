// Package websocket pushes tour snapshots to browsers and runs the live
// frame loop for watched sessions.
//
// A central Hub owns every connection. Each client has a read pump and a
// write pump; all map mutation happens on the hub goroutine started by Run.
//
// Outgoing messages are JSON documents:
//
//	{"session_id": "ab12cd34", "event": "state_update", "snapshot": {...}, "events": [...]}
//
// Clients may send held controls or a pause request:
//
//	{"type": "input", "accelerate": true, "brake": false}
//	{"type": "pause"}
//	{"type": "pause", "paused": false}
//
// With WithLiveService the hub starts a loop.Runner for a session when its
// first client connects and stops it when the last one leaves. Each frame
// steps the session with the held controls and broadcasts the snapshot if
// anything visible changed.
//
// Usage:
//
//	hub := websocket.NewHub(logger, websocket.WithLiveService(tourService))
//	go hub.Run(ctx)
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
