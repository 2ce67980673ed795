package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription"
)

// registry holds the live sessions of the server. Sessions unused for longer than ttl are
// dropped the next time the registry is touched; ttl 0 keeps them forever.
type registry struct {
	newSession func(id string) *transcription.Session
	ttl        time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	sess     *transcription.Session
	lastUsed time.Time
	// cancel stops the acquisition started for the current generation, if any.
	cancel context.CancelFunc
}

func newRegistry(newSession func(id string) *transcription.Session, ttl time.Duration) *registry {
	return &registry{
		newSession: newSession,
		ttl:        ttl,
		now:        time.Now,
		sessions:   make(map[string]*entry),
	}
}

func (r *registry) create() *transcription.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	id := uuid.NewString()
	s := r.newSession(id)
	r.sessions[id] = &entry{sess: s, lastUsed: r.now()}
	return s
}

func (r *registry) get(id string) (*transcription.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.sess, true
}

// start begins an acquisition for the session under parent. A previous acquisition's cancel
// func is replaced; Reset invalidates it anyway.
func (r *registry) start(parent context.Context, id string, in transcription.Input) (<-chan error, error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, errSessionNotFound
	}

	ctx, cancel := context.WithCancel(parent)
	done, err := e.sess.Start(ctx, in)
	if err != nil {
		cancel()
		return nil, err
	}

	r.mu.Lock()
	e.cancel = cancel
	r.mu.Unlock()

	out := make(chan error, 1)
	go func() {
		err := <-done
		cancel()
		out <- err
	}()
	return out, nil
}

// reset cancels any running acquisition and returns the session to idle.
func (r *registry) reset(id string) (*transcription.Session, bool) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	var cancel context.CancelFunc
	if ok {
		cancel, e.cancel = e.cancel, nil
		e.lastUsed = r.now()
	}
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.sess.Reset()
	if cancel != nil {
		cancel()
	}
	return e.sess, true
}

func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return false
	}
	r.dropLocked(id, e)
	return true
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *registry) sweepLocked() {
	if r.ttl <= 0 {
		return
	}
	cutoff := r.now().Add(-r.ttl)
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			r.dropLocked(id, e)
		}
	}
}

func (r *registry) dropLocked(id string, e *entry) {
	delete(r.sessions, id)
	if e.cancel != nil {
		e.cancel()
	}
	e.sess.Reset()
}
