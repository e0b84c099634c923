// Package commentary turns broadcast frames into structured commentary rows.
//
// A Generator decodes the uploaded frame, seeds the prompt with the last
// stored score and clock, calls the configured vision model, parses its JSON
// reply with tolerant fallbacks, embeds the commentary text, and persists the
// row through a Repository. Lead changes between consecutive rows are pushed
// to the notifier.
//
// Vendor clients satisfy VisionModel and Embedder; storage backends satisfy
// Repository. Nothing in this package talks HTTP or SQL directly.
package commentary
