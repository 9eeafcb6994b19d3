package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-max-bridge/internal/domain"
	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/domain/ports/adapter"
	"telegram-max-bridge/internal/domain/ports/repository"
	"telegram-max-bridge/internal/infra/logging"
	"telegram-max-bridge/internal/infra/metrics"
	infraredis "telegram-max-bridge/internal/infra/redis"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ DispatchUseCase = (*dispatchUC)(nil)

// TokenCipher decrypts stored bot tokens just before a provider call.
// Plaintext is never persisted.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Locker serializes quota check-and-spend per link so two concurrent events
// cannot both consume the last remaining slot of the day.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// DispatchResult is the aggregate webhook response. Forwarding failures live
// in the ledger, not here; the provider only ever sees ack or ignore.
type DispatchResult struct {
	Status    string // "ok" | "ignored"
	Processed int    // successful forwards
	Total     int    // links attempted
	Reason    string // set only when Status == "ignored"
}

// HealthReport answers the per-connection health probe.
type HealthReport struct {
	SourceChannelID int64
	IsActive        bool
}

// DispatchUseCase is the webhook ingestion pipeline: resolve the capability
// token, guard the channel identity, classify the payload, and fan the event
// out to every active link of the source connection.
type DispatchUseCase interface {
	// HandleChannelPost processes one inbound event. A nil post means the
	// update was not a channel post and is acknowledged as ignored.
	// domain.ErrNotFound is returned when the webhook identifier resolves to
	// no active connection; the boundary maps it to an opaque 404.
	HandleChannelPost(ctx context.Context, webhookID string, post *model.ChannelPost) (*DispatchResult, error)
	// Health reports connection liveness without requiring a post payload.
	Health(ctx context.Context, webhookID string) (*HealthReport, error)
}

type dispatchUC struct {
	connections repository.SourceConnectionRepository
	channels    repository.DestinationChannelRepository
	links       repository.LinkRepository
	limiter     RateLimiterUseCase
	ledger      PostLedgerUseCase
	gateway     adapter.DestinationAPI
	source      adapter.SourceProviderAPI
	vault       TokenCipher
	locker      Locker
	sendTimeout time.Duration
	log         *zerolog.Logger
}

func NewDispatchUseCase(
	connections repository.SourceConnectionRepository,
	channels repository.DestinationChannelRepository,
	links repository.LinkRepository,
	limiter RateLimiterUseCase,
	ledger PostLedgerUseCase,
	gateway adapter.DestinationAPI,
	source adapter.SourceProviderAPI,
	vault TokenCipher,
	locker Locker,
	sendTimeout time.Duration,
	logger *zerolog.Logger,
) *dispatchUC {
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &dispatchUC{
		connections: connections,
		channels:    channels,
		links:       links,
		limiter:     limiter,
		ledger:      ledger,
		gateway:     gateway,
		source:      source,
		vault:       vault,
		locker:      locker,
		sendTimeout: sendTimeout,
		log:         logger,
	}
}

func (uc *dispatchUC) HandleChannelPost(ctx context.Context, webhookID string, post *model.ChannelPost) (*DispatchResult, error) {
	defer logging.TraceDuration(uc.log, "DispatchUC.HandleChannelPost")()

	conn, err := uc.connections.FindActiveByWebhookSecret(ctx, repository.NoTX, webhookID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncWebhookEvent("not_found")
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if post == nil {
		metrics.IncWebhookEvent("ignored")
		return &DispatchResult{Status: "ignored", Reason: "not a channel post"}, nil
	}

	// A post whose chat does not match the stored source channel is dropped
	// without telling the caller anything: a misrouted or shared bot must not
	// be able to write history for the wrong channel, nor probe internals.
	if post.ChatID != conn.ChannelID {
		uc.log.Warn().
			Str("connection_id", conn.ID).
			Int64("expected_channel", conn.ChannelID).
			Int64("got_channel", post.ChatID).
			Msg("channel identity mismatch, event ignored")
		metrics.IncWebhookEvent("mismatch")
		return &DispatchResult{Status: "ignored", Reason: "channel mismatch"}, nil
	}

	ct := post.Classify()
	fanout, err := uc.links.ListActiveBySource(ctx, repository.NoTX, conn.ID)
	if err != nil {
		return nil, err
	}

	res := &DispatchResult{Status: "ok", Total: len(fanout)}
	for _, link := range fanout {
		if uc.processLink(ctx, conn, link, post, ct) {
			res.Processed++
		}
	}
	metrics.IncWebhookEvent("ok")
	uc.log.Info().
		Str("connection_id", conn.ID).
		Str("content_type", string(ct)).
		Int("processed", res.Processed).
		Int("total", res.Total).
		Msg("dispatch completed")
	return res, nil
}

// processLink runs the quota -> gateway -> ledger -> increment sequence for
// one link. Every failure is absorbed into a failed ledger record so sibling
// links are never blocked or rolled back. Returns true on a successful
// forward.
func (uc *dispatchUC) processLink(ctx context.Context, conn *model.SourceConnection, link *model.Link, post *model.ChannelPost, ct model.ContentType) bool {
	start := time.Now()

	// The lock spans check -> send -> increment so a concurrent event for
	// the same link cannot double-spend the last quota slot of the day.
	lockKey := infraredis.LinkLockKey(link.ID)
	lockToken, err := uc.locker.TryLock(ctx, lockKey, uc.sendTimeout+5*time.Second)
	if err != nil {
		uc.recordFailure(ctx, link, post, ct, fmt.Sprintf("dispatch lock unavailable: %v", err))
		return false
	}
	defer func() {
		if err := uc.locker.Unlock(context.WithoutCancel(ctx), lockKey, lockToken); err != nil {
			uc.log.Warn().Err(err).Str("link_id", link.ID).Msg("failed to release dispatch lock")
		}
	}()

	allowed, remaining, err := uc.limiter.CanPost(ctx, link)
	if err != nil {
		uc.recordFailure(ctx, link, post, ct, fmt.Sprintf("quota check failed: %v", err))
		return false
	}
	if !allowed {
		metrics.IncQuotaBlock()
		uc.recordFailure(ctx, link, post, ct, fmt.Sprintf("daily limit exceeded (remaining: %d)", remaining))
		return false
	}

	destMsgID, err := uc.forward(ctx, conn, link, post, ct)
	if err != nil {
		uc.recordFailure(ctx, link, post, ct, err.Error())
		metrics.ObserveForwardLatency(string(ct), time.Since(start).Milliseconds(), false)
		return false
	}

	// Success record and counter increment happen only after gateway
	// confirmation, never before.
	if _, err := uc.ledger.Record(ctx, link.ID, post.MessageID, destMsgID, ct, model.OutcomeSuccess, ""); err != nil {
		uc.log.Error().Err(err).Str("link_id", link.ID).Msg("forward succeeded but ledger write failed")
		return false
	}
	if _, err := uc.limiter.Increment(ctx, link.ID); err != nil {
		uc.log.Error().Err(err).Str("link_id", link.ID).Msg("forward succeeded but quota increment failed")
	}
	metrics.ObserveForwardLatency(string(ct), time.Since(start).Milliseconds(), true)
	return true
}

// forward performs the actual provider call for the supported content types.
func (uc *dispatchUC) forward(ctx context.Context, conn *model.SourceConnection, link *model.Link, post *model.ChannelPost, ct model.ContentType) (string, error) {
	dest, err := uc.channels.FindByID(ctx, repository.NoTX, link.DestinationID)
	if err != nil {
		return "", fmt.Errorf("load destination channel: %w", err)
	}
	if !dest.IsActive {
		return "", fmt.Errorf("destination channel %s is inactive", dest.ID)
	}
	destToken, err := uc.vault.Decrypt(dest.BotToken)
	if err != nil {
		return "", err
	}

	sendCtx, cancel := context.WithTimeout(ctx, uc.sendTimeout)
	defer cancel()

	switch ct {
	case model.ContentText:
		return uc.gateway.SendText(sendCtx, destToken, dest.ChatID, post.Text)
	case model.ContentPhoto:
		srcToken, err := uc.vault.Decrypt(conn.BotToken)
		if err != nil {
			return "", err
		}
		photo, err := uc.source.FetchFileBytes(sendCtx, srcToken, post.PhotoFileID)
		if err != nil {
			return "", err
		}
		return uc.gateway.SendPhoto(sendCtx, destToken, dest.ChatID, photo, post.Caption)
	default:
		return "", fmt.Errorf("forwarding %s content is not supported", ct)
	}
}

func (uc *dispatchUC) recordFailure(ctx context.Context, link *model.Link, post *model.ChannelPost, ct model.ContentType, errMsg string) {
	if _, err := uc.ledger.Record(ctx, link.ID, post.MessageID, "", ct, model.OutcomeFailed, errMsg); err != nil {
		uc.log.Error().Err(err).Str("link_id", link.ID).Msg("failed to write failure record")
	}
}

func (uc *dispatchUC) Health(ctx context.Context, webhookID string) (*HealthReport, error) {
	conn, err := uc.connections.FindByWebhookSecret(ctx, repository.NoTX, webhookID)
	if err != nil {
		return nil, err
	}
	return &HealthReport{SourceChannelID: conn.ChannelID, IsActive: conn.IsActive}, nil
}
