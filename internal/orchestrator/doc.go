// Package orchestrator composes the pump controller, scheduler, and
// decision loop and owns their lifecycle.
//
// Start and Stop return per-component outcomes so a partial failure is
// visible to the caller instead of being swallowed. Stop cancels both
// loop contexts, waits for them to exit, and forces the pump off if a
// run is still in progress.
//
// IngestRecommendation is the entry point for external recommendation
// sources: high-priority recommendations act immediately through the
// pump controller, everything else queues for the next decision tick.
package orchestrator
