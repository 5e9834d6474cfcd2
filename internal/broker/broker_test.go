package broker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sj-versent/demo-aws-summit-2025/internal/broker"
)

type fakeService struct {
	mu        sync.Mutex
	auths     int
	reads     map[string]int
	authRes   broker.AuthResult
	authErr   error
	secret    broker.Secret
	readErr   error
	lastToken string
}

func newFakeService() *fakeService {
	return &fakeService{
		reads:   make(map[string]int),
		authRes: broker.AuthResult{Token: "s.token", Lease: time.Hour},
		secret: broker.Secret{
			AccessKeyID:     "AKIAEXAMPLE",
			SecretAccessKey: "secret",
			SessionToken:    "session",
			LeaseSeconds:    900,
		},
	}
}

func (f *fakeService) Authenticate(_ context.Context, roleID, secretID string) (broker.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auths++
	return f.authRes, f.authErr
}

func (f *fakeService) ReadSecret(_ context.Context, token, path string) (broker.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[path]++
	f.lastToken = token
	return f.secret, f.readErr
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newBroker(svc broker.SecretsService, c *clock) *broker.Broker {
	return broker.NewWithNow(svc, broker.Config{
		RoleID:       "role",
		SecretID:     "secret",
		DefaultLease: time.Hour,
		SafetyMargin: 5 * time.Second,
	}, c.now)
}

func TestSessionToken_ReusedInsideWindow(t *testing.T) {
	svc := newFakeService()
	svc.authRes.Lease = 60 * time.Second
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := newBroker(svc, c)

	first, err := b.SessionToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s.token", first.Value)
	assert.Equal(t, c.t.Add(60*time.Second), first.ExpiresAt)

	c.advance(54 * time.Second)
	_, err = b.SessionToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, svc.auths)

	c.advance(time.Second) // now == expiresAt - 5s
	_, err = b.SessionToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, svc.auths)
}

func TestSessionToken_DefaultLeaseWhenOmitted(t *testing.T) {
	svc := newFakeService()
	svc.authRes.Lease = 0
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := newBroker(svc, c)

	tok, err := b.SessionToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, c.t.Add(3600*time.Second), tok.ExpiresAt)
}

func TestSessionToken_MissingIdentifiersFailsBeforeNetwork(t *testing.T) {
	svc := newFakeService()
	b := broker.New(svc, broker.Config{})

	_, err := b.SessionToken(context.Background())
	require.ErrorIs(t, err, broker.ErrAuthConfiguration)
	assert.Equal(t, 0, svc.auths)
}

func TestSessionToken_ErrorTaxonomy(t *testing.T) {
	c := &clock{t: time.Now()}

	svc := newFakeService()
	svc.authErr = broker.ErrAuthConnectivity
	_, err := newBroker(svc, c).SessionToken(context.Background())
	assert.ErrorIs(t, err, broker.ErrAuthConnectivity)

	svc = newFakeService()
	svc.authRes = broker.AuthResult{}
	_, err = newBroker(svc, c).SessionToken(context.Background())
	assert.ErrorIs(t, err, broker.ErrAuthRejected)

	svc = newFakeService()
	svc.authErr = errors.New("permission denied")
	_, err = newBroker(svc, c).SessionToken(context.Background())
	assert.ErrorIs(t, err, broker.ErrAuthRejected)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestScopedCredential_SingleFetchInsideWindow(t *testing.T) {
	svc := newFakeService()
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := newBroker(svc, c)

	first, err := b.ScopedCredential(context.Background(), "aws/creds/a")
	require.NoError(t, err)
	assert.Equal(t, "AKIAEXAMPLE", first.AccessKeyID)
	assert.Equal(t, c.t, first.FetchedAt)
	assert.Equal(t, "s.token", svc.lastToken)

	c.advance(100 * time.Second)
	second, err := b.ScopedCredential(context.Background(), "aws/creds/a")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, svc.reads["aws/creds/a"])
}

func TestScopedCredential_RefetchAtWindowEdge(t *testing.T) {
	svc := newFakeService()
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := newBroker(svc, c)

	_, err := b.ScopedCredential(context.Background(), "aws/creds/a")
	require.NoError(t, err)

	// lease 900s, margin 5s: fetchedAt + 895s is the first stale instant.
	c.advance(894 * time.Second)
	_, err = b.ScopedCredential(context.Background(), "aws/creds/a")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.reads["aws/creds/a"])

	c.advance(time.Second)
	refreshed, err := b.ScopedCredential(context.Background(), "aws/creds/a")
	require.NoError(t, err)
	assert.Equal(t, 2, svc.reads["aws/creds/a"])
	assert.Equal(t, c.t, refreshed.FetchedAt)
}

func TestScopedCredential_PathsAreIndependent(t *testing.T) {
	svc := newFakeService()
	c := &clock{t: time.Now()}
	b := newBroker(svc, c)

	for _, p := range []string{"aws/creds/a", "aws/creds/b", "aws/creds/a"} {
		_, err := b.ScopedCredential(context.Background(), p)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, svc.reads["aws/creds/a"])
	assert.Equal(t, 1, svc.reads["aws/creds/b"])
	assert.Equal(t, 1, svc.auths)

	assert.True(t, b.Invalidate("aws/creds/a"))
	assert.False(t, b.Invalidate("aws/creds/a"))
	_, err := b.ScopedCredential(context.Background(), "aws/creds/a")
	require.NoError(t, err)
	assert.Equal(t, 2, svc.reads["aws/creds/a"])
	assert.Equal(t, 1, svc.reads["aws/creds/b"])
}

func TestScopedCredential_DefaultLeaseWhenOmitted(t *testing.T) {
	svc := newFakeService()
	svc.secret.LeaseSeconds = 0
	b := newBroker(svc, &clock{t: time.Now()})

	cred, err := b.ScopedCredential(context.Background(), "aws/creds/a")
	require.NoError(t, err)
	assert.Equal(t, 3600, cred.LeaseSeconds)
}

func TestScopedCredential_WrapsTokenFailure(t *testing.T) {
	svc := newFakeService()
	b := broker.New(svc, broker.Config{})

	_, err := b.ScopedCredential(context.Background(), "aws/creds/a")
	var fetchErr *broker.CredentialFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, broker.StageTokenRetrieval, fetchErr.Stage)
	assert.ErrorIs(t, err, broker.ErrAuthConfiguration)
	assert.Equal(t, 0, svc.reads["aws/creds/a"])
}

func TestScopedCredential_ReadFailureLeavesCacheEmpty(t *testing.T) {
	svc := newFakeService()
	svc.readErr = errors.New("permission denied")
	b := newBroker(svc, &clock{t: time.Now()})

	_, err := b.ScopedCredential(context.Background(), "aws/creds/a")
	var fetchErr *broker.CredentialFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, broker.StageCredentialRead, fetchErr.Stage)

	svc.readErr = nil
	_, err = b.ScopedCredential(context.Background(), "aws/creds/a")
	require.NoError(t, err)
	assert.Equal(t, 2, svc.reads["aws/creds/a"])
}

func TestScopedCredential_RejectsPartialCredential(t *testing.T) {
	svc := newFakeService()
	svc.secret.SecretAccessKey = ""
	b := newBroker(svc, &clock{t: time.Now()})

	cred, err := b.ScopedCredential(context.Background(), "aws/creds/a")
	require.Error(t, err)
	assert.Equal(t, broker.ScopedCredential{}, cred)
}

// blockingService holds every ReadSecret until release is closed and reports
// the ctx error it sees afterwards.
type blockingService struct {
	*fakeService
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingService) ReadSecret(ctx context.Context, token, path string) (broker.Secret, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	if err := ctx.Err(); err != nil {
		return broker.Secret{}, err
	}
	return s.fakeService.ReadSecret(ctx, token, path)
}

func TestScopedCredential_CancelledCallerDoesNotFailOthers(t *testing.T) {
	svc := &blockingService{
		fakeService: newFakeService(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	b := newBroker(svc, &clock{t: time.Now()})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := b.ScopedCredential(leaderCtx, "aws/creds/a")
		leaderErr <- err
	}()
	<-svc.entered

	const followers = 8
	var wg sync.WaitGroup
	wg.Add(followers)
	for i := 0; i < followers; i++ {
		go func() {
			defer wg.Done()
			cred, err := b.ScopedCredential(context.Background(), "aws/creds/a")
			assert.NoError(t, err)
			assert.Equal(t, "AKIAEXAMPLE", cred.AccessKeyID)
		}()
	}
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared read")
	}

	close(svc.release)
	wg.Wait()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, 1, svc.reads["aws/creds/a"])
	assert.Equal(t, 1, svc.auths)
}
