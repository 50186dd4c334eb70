// Package session provides the recording session state machine and its
// lifecycle handling. It orchestrates input acquisition, block delivery,
// pause/resume timing, and finalization of the captured audio into a
// downloadable artifact.
package session
