package pipeline

import (
	"context"
	"fmt"
	"time"

	"gpu-catalog/catalog"
)

// SequenceSource allocates the run sequence for a given UTC date. The
// allocator is only consulted after validation passes, so a denied catalog
// never burns a sequence number.
type SequenceSource interface {
	NextRunSeq(ctx context.Context, date string) (int, error)
}

// StaticSequence pins the run sequence, as a CI-supplied run number does.
type StaticSequence int

func (s StaticSequence) NextRunSeq(ctx context.Context, date string) (int, error) {
	if s < 1 {
		return 0, fmt.Errorf("run sequence must be >= 1, got %d", int(s))
	}
	return int(s), nil
}

// AllocateVersion combines the clock's UTC date with the source's next
// sequence for that date.
func AllocateVersion(ctx context.Context, now time.Time, source SequenceSource) (catalog.Version, error) {
	date := now.UTC().Format("20060102")

	seq, err := source.NextRunSeq(ctx, date)
	if err != nil {
		return catalog.Version{}, fmt.Errorf("allocate run sequence: %w", err)
	}
	if seq < 1 {
		return catalog.Version{}, fmt.Errorf("run sequence must be >= 1, got %d", seq)
	}
	return catalog.Version{Date: date, Seq: seq}, nil
}
