// Package batch loads many items concurrently and keeps partial results.
//
// A failed item never aborts the batch: each Result carries its own error so
// callers can render a placeholder for the missing part (one chapter of a
// book, one verse of a facts page) while showing the rest.
//
// Example usage:
//
//	fetcher := batch.New[int, scripture.Chapter](batch.DefaultConfig())
//	results := fetcher.FetchAll(ctx, []int{1, 2, 3}, func(ctx context.Context, n int) (scripture.Chapter, error) {
//		return client.GetChapter(ctx, "GEN", n, "")
//	})
//
// When the items go through the paced request queue the workers only decide
// how many requests wait in the queue at once; the queue still serializes them.
package batch
