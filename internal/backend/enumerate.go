package backend

import (
	"context"
	stderr "errors"

	"github.com/sourcegraph/conc/pool"

	"github.com/objectfs/s3backend/internal/metrics"
	"github.com/objectfs/s3backend/pkg/keyexpr"
	"github.com/objectfs/s3backend/pkg/types"
)

type candidate struct {
	objectKey string
	key       *keyexpr.KeyExpr
}

type headResult struct {
	entry types.Entry
	ok    bool
}

// enumerate lists the bucket, keeps the keys matching the filter and fetches
// the timestamp of each one concurrently.
func (s *Storage) enumerate(ctx context.Context) ([]types.Entry, error) {
	var objectKeys []string
	err := s.exec.Do(ctx, func(ctx context.Context) error {
		keys, err := s.client.ListObjects(ctx)
		objectKeys = keys
		return err
	})
	if err != nil {
		return nil, s.storeError(err, "list", s.client.Bucket())
	}
	s.health.RecordSuccess(storeComponent)

	candidates := s.candidates(objectKeys)
	s.logger.Debug("Enumerating bucket", "objects", len(objectKeys), "candidates", len(candidates))
	if len(candidates) == 0 {
		return []types.Entry{}, nil
	}

	// The whole fan-out is one unit of work so that an owned executor sees a
	// single task per enumeration.
	var entries []types.Entry
	err = s.exec.Do(ctx, func(ctx context.Context) error {
		entries = s.fetchTimestamps(ctx, candidates)
		return nil
	})
	if err != nil {
		return nil, s.storeError(err, "head", s.client.Bucket())
	}

	return entries, nil
}

// candidates drops the sentinel, untranslatable keys and keys outside the filter.
func (s *Storage) candidates(objectKeys []string) []candidate {
	out := make([]candidate, 0, len(objectKeys))
	for _, objectKey := range objectKeys {
		if objectKey == SentinelKey {
			continue
		}

		key, err := FromObjectKey(s.prefix, objectKey)
		if err != nil {
			s.logger.Error("Skipping object with invalid key", "key", objectKey, "error", err)
			s.metrics.RecordEnumerationDropped(metrics.DropTranslation)
			continue
		}
		if !key.Intersects(s.filter) {
			continue
		}

		out = append(out, candidate{objectKey: objectKey, key: key})
	}
	return out
}

func (s *Storage) fetchTimestamps(ctx context.Context, candidates []candidate) []types.Entry {
	p := pool.NewWithResults[headResult]()
	if s.maxHeads > 0 {
		p = p.WithMaxGoroutines(s.maxHeads)
	}

	for _, c := range candidates {
		p.Go(func() headResult {
			return s.fetchTimestamp(ctx, c)
		})
	}

	results := p.Wait()
	entries := make([]types.Entry, 0, len(results))
	for _, r := range results {
		if r.ok {
			entries = append(entries, r.entry)
		}
	}
	return entries
}

func (s *Storage) fetchTimestamp(ctx context.Context, c candidate) headResult {
	metadata, err := s.client.HeadObject(ctx, c.objectKey)
	if err != nil {
		s.health.RecordError(storeComponent, err)
		s.logger.Error("Unable to get object metadata", "key", c.objectKey, "error", err)
		s.metrics.RecordEnumerationDropped(metrics.DropHead)
		return headResult{}
	}

	ts, err := parseTimestamp(metadata)
	if err != nil {
		reason := metrics.DropTimestamp
		if stderr.Is(err, errNoMetadata) {
			reason = metrics.DropMetadata
		}
		s.logger.Error("Unable to obtain timestamp", "key", c.objectKey, "error", err)
		s.metrics.RecordEnumerationDropped(reason)
		return headResult{}
	}

	return headResult{
		entry: types.Entry{Key: c.key, Timestamp: ts},
		ok:    true,
	}
}
