package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telegram-max-bridge/internal/domain"
	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/domain/ports/adapter"
	"telegram-max-bridge/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

// memUserRepo is a small in-memory implementation used by unit tests.
type memUserRepo struct {
	mu    sync.RWMutex
	store map[string]*model.User // by ID
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memSourceConnectionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.SourceConnection
}

func newMemSourceConnectionRepo() *memSourceConnectionRepo {
	return &memSourceConnectionRepo{store: make(map[string]*model.SourceConnection)}
}

func (m *memSourceConnectionRepo) Save(ctx context.Context, tx repository.Tx, c *model.SourceConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *memSourceConnectionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SourceConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memSourceConnectionRepo) FindActiveByWebhookSecret(ctx context.Context, tx repository.Tx, secret string) (*model.SourceConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.store {
		if c.WebhookSecret == secret && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSourceConnectionRepo) FindByWebhookSecret(ctx context.Context, tx repository.Tx, secret string) (*model.SourceConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.store {
		if c.WebhookSecret == secret {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSourceConnectionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.SourceConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.SourceConnection
	for _, c := range m.store {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSourceConnectionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

type memDestinationChannelRepo struct {
	mu    sync.RWMutex
	store map[string]*model.DestinationChannel
}

func newMemDestinationChannelRepo() *memDestinationChannelRepo {
	return &memDestinationChannelRepo{store: make(map[string]*model.DestinationChannel)}
}

func (m *memDestinationChannelRepo) Save(ctx context.Context, tx repository.Tx, ch *model.DestinationChannel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ch
	m.store[ch.ID] = &cp
	return nil
}

func (m *memDestinationChannelRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.DestinationChannel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (m *memDestinationChannelRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.DestinationChannel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.DestinationChannel
	for _, ch := range m.store {
		if ch.UserID == userID {
			cp := *ch
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memDestinationChannelRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

type memLinkRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Link
}

func newMemLinkRepo() *memLinkRepo {
	return &memLinkRepo{store: make(map[string]*model.Link)}
}

func (m *memLinkRepo) Save(ctx context.Context, tx repository.Tx, l *model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.store[l.ID] = &cp
	return nil
}

func (m *memLinkRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLinkRepo) ListActiveBySource(ctx context.Context, tx repository.Tx, sourceID string) ([]*model.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Link
	for _, l := range m.store {
		if l.SourceID == sourceID && l.IsActive {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLinkRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Link
	for _, l := range m.store {
		if l.UserID == userID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLinkRepo) CountActiveByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cnt := 0
	for _, l := range m.store {
		if l.UserID == userID && l.IsActive {
			cnt++
		}
	}
	return cnt, nil
}

func (m *memLinkRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

type memPostRecordRepo struct {
	mu      sync.RWMutex
	records []*model.PostRecord
	saveErr error // used by tests to simulate ledger write failures
}

func newMemPostRecordRepo() *memPostRecordRepo {
	return &memPostRecordRepo{}
}

func (m *memPostRecordRepo) Save(ctx context.Context, tx repository.Tx, p *model.PostRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.records = append(m.records, &cp)
	return nil
}

func (m *memPostRecordRepo) ListByLink(ctx context.Context, tx repository.Tx, linkID string, offset, limit int) ([]*model.PostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*model.PostRecord
	// records append in creation order; walk backwards for newest-first
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].LinkID == linkID {
			cp := *m.records[i]
			all = append(all, &cp)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memPostRecordRepo) CountByLink(ctx context.Context, tx repository.Tx, linkID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cnt := 0
	for _, r := range m.records {
		if r.LinkID == linkID {
			cnt++
		}
	}
	return cnt, nil
}

func (m *memPostRecordRepo) DeleteOlderThan(ctx context.Context, tx repository.Tx, outcome model.Outcome, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*model.PostRecord
	var deleted int64
	for _, r := range m.records {
		if r.Outcome == outcome && r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// byLink returns all records for a link, oldest first.
func (m *memPostRecordRepo) byLink(linkID string) []*model.PostRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PostRecord
	for _, r := range m.records {
		if r.LinkID == linkID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

type memQuotaRepo struct {
	mu     sync.Mutex
	counts map[string]int // key linkID|YYYY-MM-DD
}

func newMemQuotaRepo() *memQuotaRepo {
	return &memQuotaRepo{counts: make(map[string]int)}
}

func dayNow() time.Time { return time.Now().UTC() }

func quotaKey(linkID string, day time.Time) string {
	return linkID + "|" + day.UTC().Format("2006-01-02")
}

func (m *memQuotaRepo) CountForDay(ctx context.Context, tx repository.Tx, linkID string, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[quotaKey(linkID, day)], nil
}

func (m *memQuotaRepo) Increment(ctx context.Context, tx repository.Tx, linkID string, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := quotaKey(linkID, day)
	m.counts[k]++
	return m.counts[k], nil
}

func (m *memQuotaRepo) DeleteBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cut := cutoff.UTC().Format("2006-01-02")
	var deleted int64
	for k := range m.counts {
		if day := k[len(k)-10:]; day < cut {
			delete(m.counts, k)
			deleted++
		}
	}
	return deleted, nil
}

// fakeGateway is a scriptable DestinationAPI. failFor marks chat ids whose
// sends fail; calls records every send in order.
type fakeGateway struct {
	mu      sync.Mutex
	calls   []string // "text:<chatID>:<text>" / "photo:<chatID>:<caption>"
	failFor map[int64]*adapter.GatewayError
	nextID  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failFor: make(map[int64]*adapter.GatewayError)}
}

func (f *fakeGateway) SendText(ctx context.Context, token string, chatID int64, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("text:%d:%s", chatID, text))
	if gw, ok := f.failFor[chatID]; ok {
		return "", gw
	}
	f.nextID++
	return fmt.Sprintf("dest-%d", f.nextID), nil
}

func (f *fakeGateway) SendPhoto(ctx context.Context, token string, chatID int64, photo []byte, caption string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("photo:%d:%s", chatID, caption))
	if gw, ok := f.failFor[chatID]; ok {
		return "", gw
	}
	f.nextID++
	return fmt.Sprintf("dest-%d", f.nextID), nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeSourceProvider is a scriptable SourceProviderAPI.
type fakeSourceProvider struct {
	mu            sync.Mutex
	identity      *adapter.BotIdentity
	identityErr   error
	setWebhookErr error
	webhooksSet   []string
	webhooksGone  int
	fileBytes     []byte
	fileErr       error
}

func newFakeSourceProvider() *fakeSourceProvider {
	return &fakeSourceProvider{
		identity: &adapter.BotIdentity{ID: 42, Username: "bridge_bot"},
		fileErr:  domain.ErrAssetFetchUnsupported,
	}
}

func (f *fakeSourceProvider) GetBotIdentity(ctx context.Context, token string) (*adapter.BotIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	return f.identity, nil
}

func (f *fakeSourceProvider) SetWebhook(ctx context.Context, token, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setWebhookErr != nil {
		return f.setWebhookErr
	}
	f.webhooksSet = append(f.webhooksSet, url)
	return nil
}

func (f *fakeSourceProvider) DeleteWebhook(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooksGone++
	return nil
}

func (f *fakeSourceProvider) GetWebhookStatus(ctx context.Context, token string) (*adapter.WebhookStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.webhooksSet) == 0 {
		return &adapter.WebhookStatus{}, nil
	}
	return &adapter.WebhookStatus{URL: f.webhooksSet[len(f.webhooksSet)-1]}, nil
}

func (f *fakeSourceProvider) FetchFileBytes(ctx context.Context, token, fileID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fileErr != nil {
		return nil, f.fileErr
	}
	return f.fileBytes, nil
}

// plainCipher is a no-op TokenCipher for tests; decryptErr simulates
// unreadable stored credentials.
type plainCipher struct {
	decryptErr error
}

func (p *plainCipher) Encrypt(s string) (string, error) { return s, nil }

func (p *plainCipher) Decrypt(s string) (string, error) {
	if p.decryptErr != nil {
		return "", p.decryptErr
	}
	return s, nil
}

// memLocker is a real per-key mutex so concurrency tests exercise the same
// serialization the Redis locker provides.
type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return "token", nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	m := l.locks[key]
	l.mu.Unlock()
	if m != nil {
		m.Unlock()
	}
	return nil
}

// noopTxManager runs the function outside any real transaction.
type noopTxManager struct{}

func (noopTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}
