package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"telegram-max-bridge/internal/config"
	"telegram-max-bridge/internal/domain"
	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/domain/ports/adapter"
	"telegram-max-bridge/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// testEnv wires the full pipeline over in-memory stores and fakes.
type testEnv struct {
	users   *memUserRepo
	conns   *memSourceConnectionRepo
	chans   *memDestinationChannelRepo
	links   *memLinkRepo
	posts   *memPostRecordRepo
	quotas  *memQuotaRepo
	gateway *fakeGateway
	source  *fakeSourceProvider
	cipher  *plainCipher
	limiter RateLimiterUseCase
	ledger  PostLedgerUseCase
	disp    DispatchUseCase
}

func newTestEnv(t *testing.T, limits config.LimitsConfig) *testEnv {
	t.Helper()
	if limits.ConnectionsPerUser == 0 {
		limits.ConnectionsPerUser = 3
	}
	if limits.DailyPostsPerLink == 0 {
		limits.DailyPostsPerLink = 100
	}
	if limits.RetentionDaysSuccess == 0 {
		limits.RetentionDaysSuccess = 30
	}
	if limits.RetentionDaysFailed == 0 {
		limits.RetentionDaysFailed = 7
	}
	if limits.RetentionDaysCounters == 0 {
		limits.RetentionDaysCounters = 2
	}

	log := zerolog.Nop()
	e := &testEnv{
		users:   newMemUserRepo(),
		conns:   newMemSourceConnectionRepo(),
		chans:   newMemDestinationChannelRepo(),
		links:   newMemLinkRepo(),
		posts:   newMemPostRecordRepo(),
		quotas:  newMemQuotaRepo(),
		gateway: newFakeGateway(),
		source:  newFakeSourceProvider(),
		cipher:  &plainCipher{},
	}
	e.limiter = NewRateLimiterUseCase(e.users, e.links, e.quotas, limits, &log)
	e.ledger = NewPostLedgerUseCase(e.posts, e.quotas, limits, &log)
	e.disp = NewDispatchUseCase(e.conns, e.chans, e.links, e.limiter, e.ledger, e.gateway, e.source, e.cipher, newMemLocker(), 0, &log)
	return e
}

// seedBridge creates a tenant with one active connection on source channel
// 999 and one link to destination chat destChat.
func (e *testEnv) seedBridge(t *testing.T, destChat int64) (*model.User, *model.SourceConnection, *model.Link) {
	t.Helper()
	ctx := context.Background()

	u, err := model.NewUser("", fmt.Sprintf("tenant-%d@example.com", destChat))
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := e.users.Save(ctx, repository.NoTX, u); err != nil {
		t.Fatalf("save user: %v", err)
	}

	conn, err := model.NewSourceConnection(u.ID, 999, "source_channel", "tg-token")
	if err != nil {
		t.Fatalf("new connection: %v", err)
	}
	if err := e.conns.Save(ctx, repository.NoTX, conn); err != nil {
		t.Fatalf("save connection: %v", err)
	}

	link := e.addLink(t, u, conn, destChat)
	return u, conn, link
}

func (e *testEnv) addLink(t *testing.T, u *model.User, conn *model.SourceConnection, destChat int64) *model.Link {
	t.Helper()
	ctx := context.Background()

	dest, err := model.NewDestinationChannel(u.ID, destChat, "dest", "max-token")
	if err != nil {
		t.Fatalf("new destination: %v", err)
	}
	if err := e.chans.Save(ctx, repository.NoTX, dest); err != nil {
		t.Fatalf("save destination: %v", err)
	}
	link, err := model.NewLink(u.ID, conn, dest, "")
	if err != nil {
		t.Fatalf("new link: %v", err)
	}
	if err := e.links.Save(ctx, repository.NoTX, link); err != nil {
		t.Fatalf("save link: %v", err)
	}
	return link
}

func textPost(chatID int64, text string) *model.ChannelPost {
	return &model.ChannelPost{MessageID: 1001, ChatID: chatID, Text: text}
}

func TestDispatch_UnknownSecretIsNotFound(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{})
	_, err := e.disp.HandleChannelPost(context.Background(), "no-such-secret", textPost(999, "hi"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatch_InactiveConnectionIsNotFound(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{})
	_, conn, _ := e.seedBridge(t, 100)
	conn.IsActive = false
	if err := e.conns.Save(context.Background(), repository.NoTX, conn); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Inactive must be indistinguishable from unknown.
	_, err := e.disp.HandleChannelPost(context.Background(), conn.WebhookSecret, textPost(999, "hi"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for inactive connection, got %v", err)
	}
	if n := len(e.posts.byLink("")); n != 0 {
		t.Errorf("expected no records, got %d", n)
	}
}

func TestDispatch_NonChannelPostIgnored(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{})
	_, conn, link := e.seedBridge(t, 100)

	res, err := e.disp.HandleChannelPost(context.Background(), conn.WebhookSecret, nil)
	if err != nil {
		t.Fatalf("HandleChannelPost: %v", err)
	}
	if res.Status != "ignored" || res.Reason != "not a channel post" {
		t.Errorf("result = %+v", res)
	}
	if n := len(e.posts.byLink(link.ID)); n != 0 {
		t.Errorf("expected no records, got %d", n)
	}
}

func TestDispatch_ChannelMismatchIgnored(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{})
	_, conn, link := e.seedBridge(t, 100)

	// Stored source channel is 999; the event claims 555.
	res, err := e.disp.HandleChannelPost(context.Background(), conn.WebhookSecret, textPost(555, "hi"))
	if err != nil {
		t.Fatalf("HandleChannelPost: %v", err)
	}
	if res.Status != "ignored" || res.Reason != "channel mismatch" {
		t.Errorf("result = %+v", res)
	}
	if n := len(e.posts.byLink(link.ID)); n != 0 {
		t.Errorf("mismatch must write zero records, got %d", n)
	}
	if e.gateway.callCount() != 0 {
		t.Errorf("mismatch must not reach the gateway")
	}
}

func TestDispatch_TextForwardSuccess(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{})
	_, conn, link := e.seedBridge(t, 100)

	res, err := e.disp.HandleChannelPost(context.Background(), conn.WebhookSecret, textPost(999, "hello world"))
	if err != nil {
		t.Fatalf("HandleChannelPost: %v", err)
	}
	if res.Status != "ok" || res.Processed != 1 || res.Total != 1 {
		t.Errorf("result = %+v", res)
	}

	recs := e.posts.byLink(link.ID)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Outcome != model.OutcomeSuccess {
		t.Errorf("outcome = %s", rec.Outcome)
	}
	if rec.DestMessageID == "" {
		t.Error("success record must carry the gateway message id")
	}
	if rec.ContentType != model.ContentText {
		t.Errorf("content type = %s", rec.ContentType)
	}
	if rec.SourceMessageID != 1001 {
		t.Errorf("source message id = %d", rec.SourceMessageID)
	}

	if allowed, remaining, _ := e.limiter.CanPost(context.Background(), link); !allowed || remaining != 99 {
		t.Errorf("after one forward: allowed=%v remaining=%d", allowed, remaining)
	}
}

func TestDispatch_QuotaExceededWritesFailedRecord(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{DailyPostsPerLink: 2})
	_, conn, link := e.seedBridge(t, 100)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := e.disp.HandleChannelPost(ctx, conn.WebhookSecret, textPost(999, "ok")); err != nil {
			t.Fatalf("forward %d: %v", i, err)
		}
	}

	// Third attempt on the same day: no gateway call, no increment.
	before := e.gateway.callCount()
	res, err := e.disp.HandleChannelPost(ctx, conn.WebhookSecret, textPost(999, "over"))
	if err != nil {
		t.Fatalf("HandleChannelPost: %v", err)
	}
	if res.Processed != 0 || res.Total != 1 {
		t.Errorf("result = %+v", res)
	}
	if e.gateway.callCount() != before {
		t.Error("blocked attempt must not reach the gateway")
	}

	recs := e.posts.byLink(link.ID)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	last := recs[len(recs)-1]
	if last.Outcome != model.OutcomeFailed {
		t.Errorf("outcome = %s", last.Outcome)
	}
	if !strings.Contains(last.ErrorMessage, "daily limit exceeded") {
		t.Errorf("error = %q", last.ErrorMessage)
	}

	if allowed, _, _ := e.limiter.CanPost(ctx, link); allowed {
		t.Error("quota must remain exhausted")
	}
	if count, _ := e.quotas.CountForDay(ctx, repository.NoTX, link.ID, dayNow()); count != 2 {
		t.Errorf("counter = %d, want 2 (no increment on blocked attempt)", count)
	}
}

func TestDispatch_FanOutFailureIsolation(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{})
	u, conn, link1 := e.seedBridge(t, 100)
	link2 := e.addLink(t, u, conn, 200)
	link3 := e.addLink(t, u, conn, 300)

	e.gateway.failFor[200] = &adapter.GatewayError{StatusCode: 502, Description: "bad gateway"}

	res, err := e.disp.HandleChannelPost(context.Background(), conn.WebhookSecret, textPost(999, "fan"))
	if err != nil {
		t.Fatalf("HandleChannelPost: %v", err)
	}
	if res.Processed != 2 || res.Total != 3 {
		t.Errorf("result = %+v", res)
	}

	for _, tc := range []struct {
		link *model.Link
		want model.Outcome
	}{
		{link1, model.OutcomeSuccess},
		{link2, model.OutcomeFailed},
		{link3, model.OutcomeSuccess},
	} {
		recs := e.posts.byLink(tc.link.ID)
		if len(recs) != 1 {
			t.Fatalf("link %s: expected 1 record, got %d", tc.link.ID, len(recs))
		}
		if recs[0].Outcome != tc.want {
			t.Errorf("link %s: outcome = %s, want %s", tc.link.ID, recs[0].Outcome, tc.want)
		}
	}

	failed := e.posts.byLink(link2.ID)[0]
	if !strings.Contains(failed.ErrorMessage, "bad gateway") {
		t.Errorf("failed record error = %q", failed.ErrorMessage)
	}
}

func TestDispatch_PhotoAssetFetchUnsupported(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{})
	_, conn, link := e.seedBridge(t, 100)

	post := &model.ChannelPost{MessageID: 7, ChatID: 999, HasPhoto: true, PhotoFileID: "file-1", Caption: "pic"}
	res, err := e.disp.HandleChannelPost(context.Background(), conn.WebhookSecret, post)
	if err != nil {
		t.Fatalf("HandleChannelPost: %v", err)
	}
	if res.Processed != 0 || res.Total != 1 {
		t.Errorf("result = %+v", res)
	}

	recs := e.posts.byLink(link.ID)
	if len(recs) != 1 || recs[0].Outcome != model.OutcomeFailed {
		t.Fatalf("records = %+v", recs)
	}
	if recs[0].ContentType != model.ContentPhoto {
		t.Errorf("content type = %s", recs[0].ContentType)
	}
	if !strings.Contains(recs[0].ErrorMessage, domain.ErrAssetFetchUnsupported.Error()) {
		t.Errorf("error = %q", recs[0].ErrorMessage)
	}
}

func TestDispatch_UnsupportedContentStillRecorded(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{})
	_, conn, link := e.seedBridge(t, 100)

	post := &model.ChannelPost{MessageID: 8, ChatID: 999, HasVideo: true}
	if _, err := e.disp.HandleChannelPost(context.Background(), conn.WebhookSecret, post); err != nil {
		t.Fatalf("HandleChannelPost: %v", err)
	}

	recs := e.posts.byLink(link.ID)
	if len(recs) != 1 || recs[0].Outcome != model.OutcomeFailed {
		t.Fatalf("records = %+v", recs)
	}
	if recs[0].ContentType != model.ContentVideo {
		t.Errorf("content type = %s", recs[0].ContentType)
	}
}

func TestDispatch_UnreadableCredentialsFailThatLinkOnly(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{})
	_, conn, link := e.seedBridge(t, 100)
	e.cipher.decryptErr = domain.ErrCredentialsUnreadable

	res, err := e.disp.HandleChannelPost(context.Background(), conn.WebhookSecret, textPost(999, "x"))
	if err != nil {
		t.Fatalf("dispatch must not fail on credential errors: %v", err)
	}
	if res.Status != "ok" || res.Processed != 0 {
		t.Errorf("result = %+v", res)
	}

	recs := e.posts.byLink(link.ID)
	if len(recs) != 1 || recs[0].Outcome != model.OutcomeFailed {
		t.Fatalf("records = %+v", recs)
	}
	if !strings.Contains(recs[0].ErrorMessage, domain.ErrCredentialsUnreadable.Error()) {
		t.Errorf("error = %q", recs[0].ErrorMessage)
	}
}

func TestDispatch_EmptyFanOutIsNoOpSuccess(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{})
	_, conn, link := e.seedBridge(t, 100)
	if err := e.links.Delete(context.Background(), repository.NoTX, link.ID); err != nil {
		t.Fatalf("delete link: %v", err)
	}

	res, err := e.disp.HandleChannelPost(context.Background(), conn.WebhookSecret, textPost(999, "x"))
	if err != nil {
		t.Fatalf("HandleChannelPost: %v", err)
	}
	if res.Status != "ok" || res.Processed != 0 || res.Total != 0 {
		t.Errorf("result = %+v", res)
	}
}

// Two concurrent events when exactly one slot remains: one must succeed, the
// other must observe the exhausted quota after the increment.
func TestDispatch_ConcurrentLastSlotNoDoubleSpend(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{DailyPostsPerLink: 1})
	_, conn, link := e.seedBridge(t, 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.disp.HandleChannelPost(ctx, conn.WebhookSecret, textPost(999, "race")); err != nil {
				t.Errorf("HandleChannelPost: %v", err)
			}
		}()
	}
	wg.Wait()

	recs := e.posts.byLink(link.ID)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	var success, failed int
	for _, r := range recs {
		switch r.Outcome {
		case model.OutcomeSuccess:
			success++
		case model.OutcomeFailed:
			failed++
		}
	}
	if success != 1 || failed != 1 {
		t.Errorf("success=%d failed=%d, want exactly one of each", success, failed)
	}
	if count, _ := e.quotas.CountForDay(ctx, repository.NoTX, link.ID, dayNow()); count != 1 {
		t.Errorf("counter = %d, want 1 (no double-spend)", count)
	}
}

func TestDispatch_Health(t *testing.T) {
	e := newTestEnv(t, config.LimitsConfig{})
	_, conn, _ := e.seedBridge(t, 100)

	h, err := e.disp.Health(context.Background(), conn.WebhookSecret)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.SourceChannelID != 999 || !h.IsActive {
		t.Errorf("health = %+v", h)
	}

	// Health resolves inactive connections too, reporting the flag.
	conn.IsActive = false
	if err := e.conns.Save(context.Background(), repository.NoTX, conn); err != nil {
		t.Fatalf("save: %v", err)
	}
	h, err = e.disp.Health(context.Background(), conn.WebhookSecret)
	if err != nil {
		t.Fatalf("Health (inactive): %v", err)
	}
	if h.IsActive {
		t.Error("expected IsActive=false")
	}

	if _, err := e.disp.Health(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
