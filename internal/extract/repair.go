package extract

import (
	"bytes"
	"encoding/json"
)

// keyRenames enumerates the field-name drifts models keep producing. Only
// these exact renames are applied; anything else is a validation failure.
var keyRenames = map[string]string{
	"title":       "title_original",
	"work_model":  "work_mode",
	"base_salary": "salary",
}

// repair normalizes a model payload before decoding. Two fixes apply:
// wrapping a bare record in the expected {"job": ...} envelope when the
// envelope key is missing, and the enumerated key renames.
func repair(payload []byte) []byte {
	payload = bytes.TrimSpace(payload)

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return payload
	}

	if _, ok := envelope["job"]; !ok {
		// The model flattened the envelope: the record fields sit at the top
		// level. Synthesize the wrapper, keeping confidence if present.
		wrapped := map[string]json.RawMessage{}
		if conf, ok := envelope["confidence"]; ok {
			wrapped["confidence"] = conf
			delete(envelope, "confidence")
		}
		if uf, ok := envelope["uncertain_fields"]; ok {
			wrapped["uncertain_fields"] = uf
			delete(envelope, "uncertain_fields")
		}
		inner, err := json.Marshal(envelope)
		if err != nil {
			return payload
		}
		wrapped["job"] = inner
		out, err := json.Marshal(wrapped)
		if err != nil {
			return payload
		}
		envelope = map[string]json.RawMessage{}
		if err := json.Unmarshal(out, &envelope); err != nil {
			return payload
		}
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal(envelope["job"], &record); err != nil {
		return payload
	}
	renamed := false
	for from, to := range keyRenames {
		val, hasFrom := record[from]
		_, hasTo := record[to]
		if hasFrom && !hasTo {
			record[to] = val
			delete(record, from)
			renamed = true
		}
	}
	if renamed {
		if inner, err := json.Marshal(record); err == nil {
			envelope["job"] = inner
		}
	}

	out, err := json.Marshal(envelope)
	if err != nil {
		return payload
	}
	return out
}
