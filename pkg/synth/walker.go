package synth

import "github.com/ppanyukov/sensorgen/pkg/template"

// Record walks t and returns one record of the same shape.
func (s *Synthesizer) Record(t *template.Template, tick Tick) map[string]interface{} {
	out := make(map[string]interface{}, len(t.Entries)+1)
	s.walk(t, tick, out)
	return out
}

func (s *Synthesizer) walk(t *template.Template, tick Tick, out map[string]interface{}) {
	for i := range t.Entries {
		e := &t.Entries[i]

		if e.Nested != nil {
			nested := make(map[string]interface{}, len(e.Nested.Entries))
			s.walk(e.Nested, tick, nested)
			out[e.Name] = nested
			continue
		}

		if val, ok := s.Field(e.Field, tick); ok {
			out[e.Name] = val
		}
	}
}
