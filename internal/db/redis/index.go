package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/stockmarks/internal/db"
)

// PutIndexed runs MULTI; DEL key; HSET key fields; LREM index 0 id; LPUSH index id; EXEC.
// Deleting first drops fields a previous version had and this one lacks.
func (s *Store) PutIndexed(ctx context.Context, key string, fields map[string]string, index, id string) error {
	if len(fields) == 0 {
		return &db.Error{Op: db.OpExec, Key: key, Err: fmt.Errorf("no fields to write")}
	}

	hset := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		hset = hset.FieldValue(k, v)
	}

	_, err := s.exec(ctx, key,
		s.b().Del().Key(key).Build(),
		hset.Build(),
		s.b().Lrem().Key(index).Count(0).Element(id).Build(),
		s.b().Lpush().Key(index).Element(id).Build(),
	)
	return err
}

// DelIndexed runs MULTI; DEL key; LREM index 0 id; EXEC and reports whether key existed.
func (s *Store) DelIndexed(ctx context.Context, key, index, id string) (bool, error) {
	replies, err := s.exec(ctx, key,
		s.b().Del().Key(key).Build(),
		s.b().Lrem().Key(index).Count(0).Element(id).Build(),
	)
	if err != nil {
		return false, err
	}
	deleted, err := replies[0].AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExec, Key: key, Err: fmt.Errorf("DEL reply: %w", err)}
	}
	return deleted > 0, nil
}

// LRange returns list elements between start and stop (inclusive, negative from tail).
func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.do(ctx, s.b().Lrange().Key(key).Start(start).Stop(stop).Build()).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpLRange, Key: key, Err: err}
	}
	return vals, nil
}

// exec wraps cmds in MULTI/EXEC on one pipeline and returns the EXEC replies, one per command.
func (s *Store) exec(ctx context.Context, key string, cmds ...rueidis.Completed) ([]rueidis.RedisMessage, error) {
	pipeline := make(rueidis.Commands, 0, len(cmds)+2)
	pipeline = append(pipeline, s.b().Multi().Build())
	pipeline = append(pipeline, cmds...)
	pipeline = append(pipeline, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, pipeline...)
	for _, res := range results {
		if err := res.Error(); err != nil {
			return nil, &db.Error{Op: db.OpExec, Key: key, Err: err}
		}
	}

	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpExec, Key: key, Err: err}
	}
	if len(replies) != len(cmds) {
		return nil, &db.Error{Op: db.OpExec, Key: key,
			Err: fmt.Errorf("expected %d replies, got %d (transaction aborted)", len(cmds), len(replies))}
	}
	return replies, nil
}
