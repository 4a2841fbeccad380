package audit

import (
	"encoding/json"
	"fmt"
	"time"

	domaudit "github.com/kailas-cloud/vecshift/internal/domain/audit"
)

// Stream field names.
const (
	fieldRunID   = "run_id"
	fieldStage   = "stage"
	fieldOutcome = "outcome"
	fieldDetail  = "detail"
	fieldFields  = "fields_json"
	fieldTS      = "ts"
)

func entryToFields(e domaudit.Entry) (map[string]string, error) {
	m := map[string]string{
		fieldRunID:   e.RunID,
		fieldStage:   e.Stage,
		fieldOutcome: string(e.Outcome),
		fieldTS:      e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if e.Detail != "" {
		m[fieldDetail] = e.Detail
	}
	if len(e.Fields) > 0 {
		data, err := json.Marshal(e.Fields)
		if err != nil {
			return nil, fmt.Errorf("marshal fields: %w", err)
		}
		m[fieldFields] = string(data)
	}
	return m, nil
}

func entryFromFields(id string, m map[string]string) (domaudit.Entry, error) {
	e := domaudit.Entry{
		ID:      id,
		RunID:   m[fieldRunID],
		Stage:   m[fieldStage],
		Outcome: domaudit.Outcome(m[fieldOutcome]),
		Detail:  m[fieldDetail],
	}
	if raw := m[fieldTS]; raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domaudit.Entry{}, fmt.Errorf("parse ts of %s: %w", id, err)
		}
		e.Timestamp = ts
	}
	if raw := m[fieldFields]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &e.Fields); err != nil {
			return domaudit.Entry{}, fmt.Errorf("unmarshal fields of %s: %w", id, err)
		}
	}
	return e, nil
}
