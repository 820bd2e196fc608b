package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/example/conference-scheduler/internal/domain"
)

// ParseSchedule decodes a schedule in the {"slot_1": [...], ...} wire
// format.
func ParseSchedule(r io.Reader) (domain.Schedule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("read schedule: %w", err)
	}
	var schedule domain.Schedule
	if err := json.Unmarshal(data, &schedule); err != nil {
		return domain.Schedule{}, err
	}
	return schedule, nil
}

// errNoSchedule is wrapped when no schedule object can be located.
var errNoSchedule = errors.New("no schedule object found")

var (
	fencePattern     = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	slotLiteralStart = regexp.MustCompile(`\{\s*"slot_1"`)
)

// DecodeGeneratorOutput extracts a schedule from an external generator's
// output. The output may be an envelope object with a "result" string, a
// list of content items whose first {"type":"text"} item carries the text,
// a bare JSON string, or a schedule object itself. Within the text the
// schedule is found by direct parse, then inside a fenced code block, then
// as the outermost object starting with "slot_1".
func DecodeGeneratorOutput(raw []byte) (domain.Schedule, error) {
	text, err := envelopeText(raw)
	if err != nil {
		return domain.Schedule{}, err
	}

	candidates := [][]byte{text}
	if m := fencePattern.FindSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if loc := slotLiteralStart.FindIndex(text); loc != nil {
		if end := bytes.LastIndexByte(text, '}'); end > loc[0] {
			candidates = append(candidates, text[loc[0]:end+1])
		}
	}

	var lastErr error
	for _, candidate := range candidates {
		var schedule domain.Schedule
		if err := json.Unmarshal(bytes.TrimSpace(candidate), &schedule); err != nil {
			lastErr = err
			continue
		}
		return schedule, nil
	}
	return domain.Schedule{}, fmt.Errorf("%w: generator output: %w (last attempt: %v)", domain.ErrMalformedInput, errNoSchedule, lastErr)
}

func envelopeText(raw []byte) ([]byte, error) {
	var envelope any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: generator output is not JSON: %v", domain.ErrMalformedInput, err)
	}

	switch v := envelope.(type) {
	case map[string]any:
		if result, ok := v["result"]; ok {
			text, ok := result.(string)
			if !ok {
				return nil, fmt.Errorf("%w: generator result is not a string", domain.ErrMalformedInput)
			}
			return []byte(text), nil
		}
		return raw, nil
	case []any:
		for _, item := range v {
			entry, ok := item.(map[string]any)
			if !ok || entry["type"] != "text" {
				continue
			}
			text, _ := entry["text"].(string)
			return []byte(text), nil
		}
		return nil, fmt.Errorf("%w: generator output has no text item", domain.ErrMalformedInput)
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("%w: unexpected generator output %T", domain.ErrMalformedInput, envelope)
}
