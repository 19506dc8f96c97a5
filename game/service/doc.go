// Package service provides the business logic layer for the driving tour.
//
// The service package implements:
//   - Multi-session tour management
//   - Configuration loading and listing
//   - Driving, stop and stage operations
//   - Mini-game rounds bound to game stages
//   - Event history and the lap leaderboard
//
// Core Interfaces:
//
// TourService is the main service interface used by the REST, WebSocket and
// MCP transports. SessionManager handles session creation, retrieval and
// persistence. ConfigManager loads and validates tour files.
//
// Architecture:
//
// The service layer sits between the transports and the engine. Each
// session owns its own TourEngine; a single mutex serializes access so an
// engine is only touched between frames.
//
// Usage:
//
//	sessionMgr := session.NewManager(log)
//	configMgr, _ := config.NewManager("configs")
//	tours := service.NewTourService(log, sessionMgr, configMgr, board)
//
//	info, err := tours.CreateSession(ctx, "classic", "ana")
//	result, err := tours.Drive(ctx, info.ID, service.DriveRequest{Frames: 120, Accelerate: true})
//	if result.StopReasonCode == service.StopReasonStopOpened {
//		stop, _ := tours.GetStop(ctx, info.ID)
//	}
package service
