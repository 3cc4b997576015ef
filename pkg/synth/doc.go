//
// Package synth produces synthetic sensor records from a compiled template.
//
// Every scalar leaf of the template is resolved on every tick to one of:
// its stored literal, a uniform random value within its range, its outlier
// literal while the field's outlier state machine is active, or the next
// value of its cyclic sequence.
//
// Quick start:
//
//	tpl, _ := template.Parse(doc)
//
//	// One Synthesizer per sensor: it owns that sensor's field state.
//	s := NewSynthesizer(randval.NewSource(randval.DefaultConfig()))
//
//	record := s.Record(tpl, Tick{ElapsedSecs: 3, Now: time.Now()})
package synth
