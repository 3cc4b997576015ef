//
// Package tsdb archives synthesized sensor records in raw Prometheus
// block format, so a run can be replayed or inspected with Prometheus
// tooling after the fact.
//
// Every numeric or boolean leaf of a record becomes one sample of the
// series sensorgen_field{sensor="<sensor>", field="<dotted.path>"}.
//
// Quick start:
//
//	// Create block writer to write to dir
//	blockWriter, _ := NewWriter(logger, dir)
//
//	// Archive records handed over by the sensor runners
//	archive := NewArchive(logger, blockWriter, "timestamp")
//	runnerOpts := sensor.WithRecordHook(archive.Record)
//
//	// Write the block when the run is over
//	archive.Close()
package tsdb
