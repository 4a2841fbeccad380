package redis

import (
	"context"
	"sort"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecshift/internal/db"
)

// XAdd appends an entry with a server-assigned ID. Fields are written in
// sorted order so entries are stable on the wire.
func (s *Store) XAdd(ctx context.Context, key string, fields map[string]string) (string, error) {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	cmd := s.b().Xadd().Key(key).Id("*").FieldValue()
	for _, k := range names {
		cmd = cmd.FieldValue(k, fields[k])
	}
	id, err := s.do(ctx, cmd.Build()).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpXAdd, Err: err}
	}
	return id, nil
}

// XRange returns entries with IDs in [start, end] in ID order.
func (s *Store) XRange(ctx context.Context, key, start, end string, count int64) ([]db.StreamEntry, error) {
	var cmd rueidis.Completed
	if count > 0 {
		cmd = s.b().Xrange().Key(key).Start(start).End(end).Count(count).Build()
	} else {
		cmd = s.b().Xrange().Key(key).Start(start).End(end).Build()
	}

	entries, err := s.do(ctx, cmd).AsXRange()
	if err != nil {
		return nil, &db.Error{Op: db.OpXRange, Err: err}
	}
	out := make([]db.StreamEntry, len(entries))
	for i, e := range entries {
		out[i] = db.StreamEntry{ID: e.ID, Fields: e.FieldValues}
	}
	return out, nil
}
