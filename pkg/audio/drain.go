package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to release a producer goroutine when the stream is no longer
// wanted, e.g. synthesised audio for an utterance that was interrupted.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
