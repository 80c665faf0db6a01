package publish

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"gpu-catalog/bundle"
	"gpu-catalog/catalog"
)

// ArchiveError reports a phase-one failure. Nothing reached the channel; the
// previous latest is untouched.
type ArchiveError struct {
	Channel string
	Version string
	Err     error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive write failed for channel %s version %s: %v", e.Channel, e.Version, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// AliasError reports a phase-two failure: the versioned archive was written
// but the channel's latest alias does not advertise it. The archive is
// retrievable by version and the alias repoint can be retried on its own.
type AliasError struct {
	Channel string
	Version string
	Err     error
}

func (e *AliasError) Error() string {
	return fmt.Sprintf("version %s archived for channel %s but latest not advertised: %v", e.Version, e.Channel, e.Err)
}

func (e *AliasError) Unwrap() error { return e.Err }

// Publisher writes bundles to channels through an ObjectStore.
type Publisher struct {
	store ObjectStore
	log   zerolog.Logger
}

// NewPublisher creates a publisher over the given store.
func NewPublisher(store ObjectStore, log zerolog.Logger) *Publisher {
	return &Publisher{store: store, log: log}
}

func archiveKey(channel, version string) string {
	return path.Join(channel, version, bundle.BundleName)
}

func aliasKey(channel string) string {
	return path.Join(channel, "latest", bundle.BundleName)
}

func markerKey(channel string) string {
	return path.Join(channel, "version")
}

// Publish runs both phases: write the versioned archive, then advertise it.
func (p *Publisher) Publish(ctx context.Context, channel, version string, data []byte) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	if version == "" {
		return fmt.Errorf("empty version")
	}

	if err := p.store.Put(ctx, archiveKey(channel, version), data); err != nil {
		return &ArchiveError{Channel: channel, Version: version, Err: err}
	}
	p.log.Info().
		Str("channel", channel).
		Str("version", version).
		Int("bytes", len(data)).
		Msg("bundle archived")

	return p.advertise(ctx, channel, version)
}

// RetryAlias re-runs phase two for an already-archived version.
func (p *Publisher) RetryAlias(ctx context.Context, channel, version string) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	if _, err := p.store.Get(ctx, archiveKey(channel, version)); err != nil {
		return fmt.Errorf("no archive for channel %s version %s: %w", channel, version, err)
	}
	return p.advertise(ctx, channel, version)
}

func (p *Publisher) advertise(ctx context.Context, channel, version string) error {
	if err := p.store.Copy(ctx, archiveKey(channel, version), aliasKey(channel)); err != nil {
		return &AliasError{Channel: channel, Version: version, Err: err}
	}

	p.warnOnRollback(ctx, channel, version)

	if err := p.store.Put(ctx, markerKey(channel), []byte(version)); err != nil {
		return &AliasError{Channel: channel, Version: version, Err: fmt.Errorf("version marker: %w", err)}
	}

	p.log.Info().
		Str("channel", channel).
		Str("version", version).
		Msg("latest advertised")
	return nil
}

// warnOnRollback flags a marker overwrite that moves the channel backwards.
// Concurrent runs are last-writer-wins; the warning is the only trace.
func (p *Publisher) warnOnRollback(ctx context.Context, channel, version string) {
	raw, err := p.store.Get(ctx, markerKey(channel))
	if err != nil {
		return
	}
	current, err := catalog.ParseVersion(strings.TrimSpace(string(raw)))
	if err != nil {
		return
	}
	next, err := catalog.ParseVersion(version)
	if err != nil {
		return
	}
	if next.Compare(current) < 0 {
		p.log.Warn().
			Str("channel", channel).
			Str("current", current.String()).
			Str("next", next.String()).
			Msg("advertised version moves channel backwards")
	}
}

// Latest returns the version the channel currently advertises.
func (p *Publisher) Latest(ctx context.Context, channel string) (string, error) {
	raw, err := p.store.Get(ctx, markerKey(channel))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// Bundle fetches a channel's bundle, by version or by the "latest" alias.
func (p *Publisher) Bundle(ctx context.Context, channel, version string) ([]byte, error) {
	if version == "latest" {
		return p.store.Get(ctx, aliasKey(channel))
	}
	return p.store.Get(ctx, archiveKey(channel, version))
}

func checkChannel(channel string) error {
	if channel == "" {
		return fmt.Errorf("empty channel")
	}
	if strings.ContainsAny(channel, "/\\") {
		return fmt.Errorf("channel %q must not contain path separators", channel)
	}
	return nil
}
