package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// fakeProvider delivers events synchronously on the caller's goroutine.
type fakeProvider struct {
	mu           sync.Mutex
	handler      func(Event)
	unsubscribed bool
	signOutErr   error
	signOuts     atomic.Int32
}

func (p *fakeProvider) Subscribe(onEvent func(Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = onEvent
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.unsubscribed = true
	}
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.signOuts.Add(1)
	return p.signOutErr
}

func (p *fakeProvider) emit(ev Event) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	h(ev)
}

func signedIn(id, credential string) SignedIn {
	return SignedIn{
		IdentityID: id,
		Defaults:   Defaults{DisplayName: id + "@example.edu"},
		Mint: func(ctx context.Context) (string, error) {
			return credential, nil
		},
	}
}

// fakeProfiles serves documents from a map. An entry in gates blocks Fetch
// for that id until the gate is closed, ignoring ctx.
type fakeProfiles struct {
	mu       sync.Mutex
	docs     map[string]ProfileFields
	errs     map[string]error
	gates    map[string]chan struct{}
	started  chan string
	returned chan string
	upserts  []Profile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		docs:     make(map[string]ProfileFields),
		errs:     make(map[string]error),
		gates:    make(map[string]chan struct{}),
		started:  make(chan string, 16),
		returned: make(chan string, 16),
	}
}

func (f *fakeProfiles) Fetch(ctx context.Context, id string) (*Profile, error) {
	f.mu.Lock()
	gate := f.gates[id]
	f.mu.Unlock()

	select {
	case f.started <- id:
	default:
	}
	if gate != nil {
		<-gate
	}
	defer func() {
		select {
		case f.returned <- id:
		default:
		}
	}()

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &Profile{IdentityID: id, ProfileFields: doc}, nil
}

func (f *fakeProfiles) Upsert(ctx context.Context, id string, fields ProfileFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return err
	}
	doc := f.docs[id]
	if fields.Role != "" {
		doc.Role = fields.Role
	}
	if fields.DisplayName != "" {
		doc.DisplayName = fields.DisplayName
	}
	f.docs[id] = doc
	f.upserts = append(f.upserts, Profile{IdentityID: id, ProfileFields: fields})
	return nil
}

func (f *fakeProfiles) set(id string, fields ProfileFields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[id] = fields
}

func (f *fakeProfiles) fail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
}

func (f *fakeProfiles) gate(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[id] = ch
	return ch
}

var errStoreDown = errors.New("store down")

// mapStore is an in-memory Store with failure injection.
type mapStore struct {
	mu        sync.Mutex
	values    map[string]string
	failWrite bool
	failLoad  bool
}

func newMapStore() *mapStore {
	return &mapStore{values: make(map[string]string)}
}

func (s *mapStore) Load(keys ...string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoad {
		return nil, errStoreDown
	}
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *mapStore) Replace(set map[string]string, del ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return errStoreDown
	}
	for _, k := range del {
		delete(s.values, k)
	}
	for k, v := range set {
		s.values[k] = v
	}
	return nil
}

func (s *mapStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return errStoreDown
	}
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

func (s *mapStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}
