// Package batching turns a stream of small PTY output chunks into fewer,
// larger frames.
//
// Policy: append each chunk to an accumulator. Once the accumulator holds
// MaxBytes or more it is flushed at once. Otherwise a single flush timer is
// (re)armed to fire after Delay of quiescence. Chunks are concatenated in
// arrival order and never reordered.
//
// Time comes from an injected k8s.io/utils/clock so the policy can be driven
// by a fake clock in tests.
package batching
