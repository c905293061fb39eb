package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/wizard"
)

const (
	_defaultDraftTTL   = 24 * time.Hour
	_maxUpdateAttempts = 5
	draftKeyPrefix     = "idea-draft:"
)

var ErrConflict = errors.New("draft changed concurrently")

// DraftStore keeps wizard drafts as JSON documents with a sliding TTL.
type DraftStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewDraftStore(client *goredis.Client, ttl time.Duration) *DraftStore {
	if ttl <= 0 {
		ttl = _defaultDraftTTL
	}
	return &DraftStore{client: client, ttl: ttl}
}

func draftKey(id string) string {
	return draftKeyPrefix + id
}

func (s *DraftStore) Create(ctx context.Context, d *wizard.Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	ok, err := s.client.SetNX(ctx, draftKey(d.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx draft %s: %w", d.ID, err)
	}
	if !ok {
		return domain.ErrDuplicate
	}
	return nil
}

func (s *DraftStore) Get(ctx context.Context, id string) (*wizard.Draft, error) {
	data, err := s.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get draft %s: %w", id, err)
	}
	return decodeDraft(data)
}

// Update applies fn to the stored draft under WATCH so concurrent edits of
// the same draft never overwrite each other.
func (s *DraftStore) Update(ctx context.Context, id string, fn func(d *wizard.Draft) error) (*wizard.Draft, error) {
	key := draftKey(id)
	var updated *wizard.Draft

	txf := func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		d, err := decodeDraft(data)
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
		d.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode draft: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = d
		return nil
	}

	for i := 0; i < _maxUpdateAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrConflict
}

func (s *DraftStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, draftKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del draft %s: %w", id, err)
	}
	return nil
}

func decodeDraft(data []byte) (*wizard.Draft, error) {
	var d wizard.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	if d.State == nil {
		d.State = wizard.NewState()
	}
	d.State.Normalize()
	return &d, nil
}
