// Package atelier orchestrates multi-slot generation sessions over
// interchangeable text-generation providers.
//
// A Studio takes one prompt and fans it out to several concurrent
// generation tasks, one per artifact slot. Each task streams its text
// through the provider abstraction; a single merge loop folds the
// increments into the session arena and publishes progress events
// through a broker. Slots fail independently: one upstream fault never
// cancels its siblings, it just turns that slot into a diagnostic
// panel.
//
// Derived workflows (ExploreVariations, MoreLikeThis, BlendStyles)
// reuse the same session machinery and differ only in how each slot's
// request is built.
package atelier
