// Package events defines the dispatch related events emitted on the event bus.
//
// Available event types:
//   - CycleEvent: start of a dispatch batch cycle
//   - RegionEvent: a region was built or discarded during clustering
//   - OfferEvent: an offer was published to a driver
//   - OfferResolvedEvent: an offer reached a terminal state
//   - WindowEvent: a time window was computed for an accepted offer
package events
