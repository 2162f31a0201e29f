// Package session is the boundary between a presentation layer and the
// timer core.
//
// A Session owns everything: the task store, the key-value backend, the
// reconciliation engine, the periodic flusher, the notification hub and the
// teardown coordinator. There is no package-level state; construct one with
// New, call Open to restore persisted state, and Close when done.
//
// Intents arrive as Commands through Dispatch. Adding a duplicate name and
// starting a task while another runs are two-phase: the first dispatch with
// Confirmed=false returns a Result naming the confirmation it needs, and the
// host either re-dispatches with Confirmed=true or drops the command.
//
//	s, err := session.New(cfg)
//	if err != nil { ... }
//	if err := s.Open(ctx); err != nil { ... }
//	defer s.Close(ctx)
//
//	res, err := s.Dispatch(session.Command{Intent: session.IntentAdd, Name: "Writing"})
//	if res.NeedsConfirmation() {
//	    // ask the user, then dispatch again with Confirmed: true
//	}
package session
