package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"khural/internal/election"
	id "khural/pkg/domain"
)

const tallyKeyPrefix = "tally:election:"

// TallyCache is a short-TTL read-through cache for live tallies. It only
// serves the public tally endpoint; certification always reads the
// authoritative store.
type TallyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTallyCache constructs a Redis-backed tally cache. A nil client
// disables caching; every method then behaves as a miss.
func NewTallyCache(client *redis.Client, ttl time.Duration) *TallyCache {
	return &TallyCache{client: client, ttl: ttl}
}

// Get returns the cached tally, or (nil, nil) on a miss.
func (c *TallyCache) Get(ctx context.Context, electionID id.ElectionID) ([]election.TallyEntry, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, tallyKeyPrefix+electionID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tally []election.TallyEntry
	if err := json.Unmarshal(raw, &tally); err != nil {
		// Unreadable entries are treated as a miss; the next Set overwrites.
		return nil, nil
	}
	return tally, nil
}

// Set stores the tally with the cache TTL.
func (c *TallyCache) Set(ctx context.Context, electionID id.ElectionID, tally []election.TallyEntry) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(tally)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, tallyKeyPrefix+electionID.String(), raw, c.ttl).Err()
}
