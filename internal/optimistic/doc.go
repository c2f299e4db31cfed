// Package optimistic implements the optimistic sync controller.
//
// A Controller owns the view of one query and turns user intents (drag a
// row onto another, move a candidate to a stage) into Mutations:
//
//	idle -> tentative -> confirmed
//	                  -> rolled_back
//
// The tentative view is computed and published synchronously, so
// subscribers see the change before any network round trip. The matching
// engine call is then dispatched on its own goroutine. On success the
// controller re-fetches the query; on failure it reports the error,
// discards the tentative view and re-fetches, falling back to the view
// captured at intent time when the re-fetch fails too.
//
// Overlapping intents proceed independently. Each tentative view is derived
// from the view current when its intent was issued, and a fetched view is
// only published when its store revision is not older than the revision of
// the view already published.
package optimistic
