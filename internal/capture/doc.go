// Package capture acquires live audio input and constructs external stream
// encoders. Device enumeration and microphone capture are backed by portaudio
// behind the "portaudio" build tag, with a stub backend otherwise; the
// compressed path pipes raw PCM through an external encoder process.
package capture
