// Package audio handles sample and chunk accumulation and WAV encoding.
// It implements interleaving of multi-channel float32 blocks, concatenation
// of opaque encoded chunks, and encoding of raw samples to 16-bit PCM WAV.
package audio
