// Package ingest converts untyped source material into the typed domain
// model: accepted-session CSV exports, historical attendance files and
// schedule JSON, including schedules wrapped in a generator's output
// envelope. Everything is validated here, once, so the engine only ever sees
// well-formed values.
package ingest
