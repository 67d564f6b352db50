package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const defaultMemoSize = 64

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithProfileMemo bounds the in-process memo of last resolved role and name
// per identity id. The memo backs the cached-value fallback when the durable
// cache holds a different identity, e.g. after a rapid account switch.
func WithProfileMemo(size int) Option {
	return func(r *Reconciler) {
		if size > 0 {
			r.memoSize = size
		}
	}
}

// WithMeterProvider overrides where reconciliation counters are recorded.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Reconciler) {
		r.meters = mp
	}
}

// WithTracer overrides the tracer used for reconciliation spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Reconciler) {
		r.tracer = t
	}
}

// Reconciler owns the current session. Provider events, resolution results
// and imperative Login/Logout calls are serialized through a single loop
// goroutine, which is the only writer of the session and the local cache.
//
// Each SignedIn event starts a resolution tagged with a generation number.
// Any later event or imperative call bumps the generation, and results that
// arrive for an older generation are dropped.
type Reconciler struct {
	provider IdentityProvider
	profiles ProfileStore
	cache    *Cache
	memo     *lru.Cache[string, ProfileFields]
	memoSize int
	tracer   trace.Tracer
	meters   metric.MeterProvider
	metrics  instruments

	current atomic.Pointer[Snapshot]

	events  chan Event
	results chan result
	cmds    chan command

	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	unsubscribe func()
	closeOnce   sync.Once

	mu       sync.Mutex // guards watchers, seq and publish ordering
	watchers map[*watcher]struct{}
	seq      uint64

	// loop-owned
	gen      uint64
	inflight context.CancelFunc
}

type result struct {
	gen        uint64
	resolution Resolution
	outcome    string
	err        error
}

type command struct {
	apply func() error
	reply chan error
}

// New reads the local cache synchronously, publishes its contents as a
// provisional session and subscribes to provider. The provisional session is
// replaced by the outcome of the first provider event, which the loop has
// taken by the time New returns, so Login and Logout always supersede it.
func New(provider IdentityProvider, profiles ProfileStore, cache *Cache, opts ...Option) (*Reconciler, error) {
	if provider == nil || profiles == nil || cache == nil {
		return nil, errors.New("session: provider, profile store and cache are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reconciler{
		provider: provider,
		profiles: profiles,
		cache:    cache,
		memoSize: defaultMemoSize,
		tracer:   otel.Tracer("classgrid/session"),
		meters:   otel.GetMeterProvider(),
		events:   make(chan Event),
		results:  make(chan result),
		cmds:     make(chan command),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		watchers: make(map[*watcher]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics = newInstruments(r.meters.Meter("classgrid/session"))

	memo, err := lru.New[string, ProfileFields](r.memoSize)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create profile memo: %w", err)
	}
	r.memo = memo

	cached := cache.Read()
	if cached != nil && cached.IdentityID != "" {
		r.memo.Add(cached.IdentityID, ProfileFields{Role: cached.Role, DisplayName: cached.DisplayName})
	}
	r.publish(cached, StateBootstrapping, cached != nil)

	go r.loop()
	r.unsubscribe = provider.Subscribe(r.enqueue)

	return r, nil
}

// Current returns the latest published snapshot.
func (r *Reconciler) Current() Snapshot {
	snap := *r.current.Load()
	snap.Session = snap.Session.Clone()
	return snap
}

// Session returns the current session, or nil when unauthenticated.
func (r *Reconciler) Session() *Session {
	return r.Current().Session
}

// State returns the current lifecycle state.
func (r *Reconciler) State() State {
	return r.current.Load().State
}

// Login installs s as the current session, bypassing the provider event path.
// s must carry a credential, display name and role. Any in-flight event
// resolution is discarded. A cache write failure is logged and does not fail
// the login.
func (r *Reconciler) Login(ctx context.Context, s Session) error {
	if err := s.ValidateComplete(); err != nil {
		return err
	}
	return r.do(ctx, func() error {
		r.supersede()
		r.persist(s)
		r.publish(&s, StateAuthenticated, false)
		return nil
	})
}

// Logout clears the cache and publishes unauthenticated, then asks the
// provider to sign out. The local teardown ignores ctx cancellation; ctx
// only bounds the provider call. Provider failures are logged and never
// returned.
func (r *Reconciler) Logout(ctx context.Context) error {
	err := r.do(context.WithoutCancel(ctx), func() error {
		r.supersede()
		r.signedOut()
		return nil
	})
	if err != nil {
		return err
	}

	if err := r.provider.SignOut(ctx); err != nil {
		log.Printf("session: %v", fmt.Errorf("%w: %v", ErrProviderSignOut, err))
	}
	return nil
}

// Close stops listening to the provider and drops every in-flight
// resolution. The last published snapshot stays readable.
func (r *Reconciler) Close() error {
	r.closeOnce.Do(func() {
		if r.unsubscribe != nil {
			r.unsubscribe()
		}
		r.cancel()
		<-r.done

		r.mu.Lock()
		for w := range r.watchers {
			close(w.ch)
			delete(r.watchers, w)
		}
		r.mu.Unlock()
	})
	return nil
}

// Done is closed once the reconciler has stopped.
func (r *Reconciler) Done() <-chan struct{} {
	return r.done
}

func (r *Reconciler) enqueue(ev Event) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

func (r *Reconciler) do(ctx context.Context, apply func() error) error {
	cmd := command{apply: apply, reply: make(chan error, 1)}
	select {
	case r.cmds <- cmd:
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-cmd.reply
}

func (r *Reconciler) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			if r.inflight != nil {
				r.inflight()
			}
			return
		case ev := <-r.events:
			r.handleEvent(ev)
		case res := <-r.results:
			r.handleResult(res)
		case cmd := <-r.cmds:
			cmd.reply <- cmd.apply()
		}
	}
}

func (r *Reconciler) handleEvent(ev Event) {
	switch ev := ev.(type) {
	case SignedIn:
		gen := r.supersede()
		ctx, cancel := context.WithCancel(r.ctx)
		r.inflight = cancel
		cached := r.cachedFields(ev.IdentityID)
		go func() {
			res := r.reconcile(ctx, gen, ev, cached)
			select {
			case r.results <- res:
			case <-r.ctx.Done():
			}
		}()
	case SignedOut:
		r.supersede()
		r.metrics.outcome(r.ctx, outcomeSignedOut)
		r.signedOut()
	default:
		log.Printf("session: ignoring unknown provider event %T", ev)
	}
}

func (r *Reconciler) handleResult(res result) {
	if res.gen != r.gen {
		r.metrics.outcome(r.ctx, outcomeStale)
		return
	}
	if r.inflight != nil {
		r.inflight()
		r.inflight = nil
	}

	if res.err != nil {
		log.Printf("session: signing out after failed reconciliation: %v", res.err)
		r.metrics.outcome(r.ctx, outcomeCredentialError)
		r.signedOut()
		return
	}

	r.metrics.outcome(r.ctx, res.outcome)
	s := res.resolution.Session
	r.persist(s)
	r.publish(&s, StateAuthenticated, false)
}

// reconcile runs outside the loop; it must not touch loop-owned state.
func (r *Reconciler) reconcile(ctx context.Context, gen uint64, ev SignedIn, cached *ProfileFields) result {
	ctx, span := r.tracer.Start(ctx, "session.reconcile",
		trace.WithAttributes(attribute.String("identity.id", ev.IdentityID)))
	defer span.End()

	fail := func(err error) result {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result{gen: gen, err: err}
	}

	if ev.IdentityID == "" {
		return fail(fmt.Errorf("%w: signed-in event without identity id", ErrCredential))
	}
	if ev.Mint == nil {
		return fail(fmt.Errorf("%w: provider cannot mint credentials", ErrCredential))
	}
	credential, err := ev.Mint(ctx)
	if err != nil {
		if !errors.Is(err, ErrCredential) {
			err = fmt.Errorf("%w: %v", ErrCredential, err)
		}
		return fail(err)
	}
	if credential == "" {
		return fail(fmt.Errorf("%w: provider returned an empty credential", ErrCredential))
	}

	profile, err := r.profiles.Fetch(ctx, ev.IdentityID)
	outcome := outcomeResolved
	switch {
	case err == nil:
	case errors.Is(err, ErrProfileNotFound):
		profile = nil
	default:
		log.Printf("session: profile fetch for %s failed, using cached values: %v", ev.IdentityID, err)
		span.AddEvent("profile.fallback")
		profile = nil
		outcome = outcomeFallback
	}

	res := Resolve(ResolveInput{
		IdentityID: ev.IdentityID,
		Credential: credential,
		Profile:    profile,
		Cached:     cached,
		Defaults:   ev.Defaults,
	})
	span.SetAttributes(
		attribute.String("session.role_source", string(res.RoleSource)),
		attribute.String("session.name_source", string(res.NameSource)),
	)
	if !res.Session.RoleResolved() {
		log.Printf("session: no role resolved for %s; role-gated access will be denied", ev.IdentityID)
	}
	return result{gen: gen, resolution: res, outcome: outcome}
}

// supersede invalidates any in-flight resolution and returns the new
// generation.
func (r *Reconciler) supersede() uint64 {
	r.gen++
	if r.inflight != nil {
		r.inflight()
		r.inflight = nil
	}
	return r.gen
}

func (r *Reconciler) signedOut() {
	if err := r.cache.Clear(); err != nil {
		log.Printf("session: %v", err)
	}
	r.publish(nil, StateUnauthenticated, false)
}

func (r *Reconciler) persist(s Session) {
	if s.IdentityID != "" {
		r.memo.Add(s.IdentityID, ProfileFields{Role: s.Role, DisplayName: s.DisplayName})
	}
	if err := r.cache.Write(s); err != nil {
		r.metrics.cacheWriteError(r.ctx)
		log.Printf("session: keeping in-memory session after cache write failure: %v", err)
	}
}

// cachedFields returns the previously reconciled role and name for
// identityID, preferring the durable cache over the in-process memo.
func (r *Reconciler) cachedFields(identityID string) *ProfileFields {
	if identityID == "" {
		return nil
	}
	if c := r.cache.Read(); c != nil && c.IdentityID == identityID {
		return &ProfileFields{Role: c.Role, DisplayName: c.DisplayName}
	}
	if f, ok := r.memo.Get(identityID); ok {
		return &f
	}
	return nil
}

func (r *Reconciler) publish(s *Session, state State, provisional bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev := r.current.Load(); prev != nil &&
		prev.State == state && prev.Provisional == provisional && prev.Session.Equal(s) {
		return
	}
	r.seq++
	snap := &Snapshot{Session: s.Clone(), State: state, Provisional: provisional, Seq: r.seq}
	r.current.Store(snap)
	for w := range r.watchers {
		w.offer(*snap)
	}
}
