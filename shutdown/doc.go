// Package shutdown sequences teardown and suspension of a timer session.
//
// Handlers are registered in phases. On Shutdown, phases run in ascending
// order and handlers sharing a phase run concurrently. The session uses:
//
//   - PhaseStop: stop background loops (periodic flush, accrual)
//   - PhaseFlush: final best-effort save of timer state
//   - PhaseRelease: close stores, hubs and connections
//
// Suspend hooks are a second, repeatable list run when the host loses
// visibility (a laptop lid closing, a terminal detaching). They typically
// flush state so the time away can be reconciled on the next load.
//
// HandleSignals maps SIGINT and SIGTERM to Shutdown and SIGHUP to Suspend:
//
//	coord := shutdown.NewCoordinator(shutdown.DefaultConfig())
//	coord.RegisterFuncWithPhase("flush", flush, shutdown.PhaseFlush)
//	coord.RegisterSuspendFunc("flush", flush)
//	coord.HandleSignals()
//	<-coord.Done()
package shutdown
