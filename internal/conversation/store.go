package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/bingio/internal/pkg/errors"
)

type SeedState int

const (
	SeedUninitialized SeedState = iota
	SeedSeeded
)

// Store is the durable, cancellable message log of one conversation.
type Store struct {
	mu        sync.Mutex
	storage   SnapshotStorage
	messages  []Message
	index     map[string]int
	durations map[string]int64
	handles   map[string]context.CancelFunc

	restoredEmpty bool
	seed          SeedState

	changes chan struct{}
	now     func() time.Time
}

// Open restores the last snapshot. Missing or corrupt snapshots yield an empty log.
func Open(ctx context.Context, storage SnapshotStorage) *Store {
	s := &Store{
		storage:   storage,
		index:     make(map[string]int),
		durations: make(map[string]int64),
		handles:   make(map[string]context.CancelFunc),
		changes:   make(chan struct{}, 1),
		now:       func() time.Time { return time.Now().UTC() },
	}
	snap := s.load(ctx)
	for _, m := range snap.Messages {
		if m.ID == "" {
			continue
		}
		// nothing is in flight after a restart
		if !m.Settled() {
			m.Status = StatusSettled
			m.Outcome = OutcomeCancelled
		}
		s.index[m.ID] = len(s.messages)
		s.messages = append(s.messages, m)
	}
	for id, ms := range snap.Durations {
		s.durations[id] = ms
	}
	s.restoredEmpty = len(s.messages) == 0
	return s
}

func (s *Store) load(ctx context.Context) *Snapshot {
	empty := &Snapshot{}
	if s.storage == nil {
		return empty
	}
	data, err := s.storage.Load(ctx)
	if err != nil {
		if !errors.Is(err, appErr.ErrNotFound) {
			logutil.GetLogger(ctx).Warn("load conversation snapshot failed", zap.Error(err))
		}
		return empty
	}
	if len(data) == 0 {
		return empty
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		logutil.GetLogger(ctx).Warn("conversation snapshot is corrupt, starting empty", zap.Error(err))
		return empty
	}
	return snap
}

// persistLocked writes the snapshot. Failures are logged and the in-memory state is kept.
func (s *Store) persistLocked(ctx context.Context) {
	defer s.notify()
	if s.storage == nil {
		return
	}
	data, err := EncodeSnapshot(&Snapshot{Messages: s.messages, Durations: s.durations})
	if err != nil {
		logutil.GetLogger(ctx).Warn("encode conversation snapshot failed", zap.Error(err))
		return
	}
	if err := s.storage.Save(ctx, data); err != nil {
		logutil.GetLogger(ctx).Warn("save conversation snapshot failed", zap.Error(err))
	}
}

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Changes signals after every mutation. Signals coalesce.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func newMessageID(role Role) string {
	prefix := "a-"
	if role == RoleUser {
		prefix = "u-"
	}
	return prefix + uuid.NewString()
}

// Append adds msg to the end of the log and returns it with defaults filled.
func (s *Store) Append(ctx context.Context, msg Message) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(ctx, msg)
}

func (s *Store) appendLocked(ctx context.Context, msg Message) Message {
	if msg.ID == "" {
		msg.ID = newMessageID(msg.Role)
	}
	for {
		if _, ok := s.index[msg.ID]; !ok {
			break
		}
		msg.ID = newMessageID(msg.Role)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if msg.Status == "" {
		msg.Status = StatusSettled
	}
	if msg.Status == StatusSettled {
		if msg.Outcome == OutcomeNone {
			msg.Outcome = OutcomeOK
		}
		if msg.SettledAt.IsZero() {
			msg.SettledAt = msg.CreatedAt
		}
	}
	msg = msg.clone()
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	s.persistLocked(ctx)
	return msg.clone()
}

// Patch merges p into the message. Unknown and settled messages are left untouched.
func (s *Store) Patch(ctx context.Context, id string, p MessagePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patchLocked(ctx, id, p)
}

func (s *Store) patchLocked(ctx context.Context, id string, p MessagePatch) bool {
	pos, ok := s.index[id]
	if !ok {
		return false
	}
	msg := &s.messages[pos]
	if msg.Settled() {
		return false
	}
	if p.Text != nil {
		msg.Parts = []Part{TextPart(*p.Text)}
	}
	if p.Outcome != nil {
		msg.Outcome = *p.Outcome
	}
	if p.Status != nil {
		msg.Status = *p.Status
		if msg.Status == StatusSettled {
			msg.SettledAt = s.now()
			if msg.Outcome == OutcomeNone {
				msg.Outcome = OutcomeOK
			}
		}
	}
	s.persistLocked(ctx)
	return true
}

func (s *Store) RecordDuration(ctx context.Context, id string, ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return
	}
	s.durations[id] = ms
	s.persistLocked(ctx)
}

// Clear cancels everything in flight, empties the log and overwrites the snapshot.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.handles {
		cancel()
		delete(s.handles, id)
	}
	s.messages = nil
	s.index = make(map[string]int)
	s.durations = make(map[string]int64)
	s.persistLocked(ctx)
}

// SeedWelcome appends an assistant greeting once per session, and only when
// the restored conversation was empty.
func (s *Store) SeedWelcome(ctx context.Context, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seed != SeedUninitialized || !s.restoredEmpty || len(s.messages) != 0 {
		return false
	}
	s.seed = SeedSeeded
	s.appendLocked(ctx, Message{
		Role:  RoleAssistant,
		Parts: []Part{TextPart(text)},
	})
	return true
}

func (s *Store) SeedState() SeedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed
}

// Begin registers a cancellation handle for id and returns the context that
// the stream feeding id must use.
func (s *Store) Begin(ctx context.Context, id string) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.handles[id]; ok {
		prev()
	}
	cctx, cancel := context.WithCancel(ctx)
	s.handles[id] = cancel
	return cctx
}

// Cancel aborts the stream of id and settles the message with the text
// accumulated so far.
func (s *Store) Cancel(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(ctx, id)
}

func (s *Store) cancelLocked(ctx context.Context, id string) bool {
	cancel, ok := s.handles[id]
	if ok {
		cancel()
		delete(s.handles, id)
	}
	status := StatusSettled
	outcome := OutcomeCancelled
	settled := s.patchLocked(ctx, id, MessagePatch{Status: &status, Outcome: &outcome})
	return ok || settled
}

func (s *Store) CancelAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.handles {
		s.cancelLocked(ctx, id)
	}
}

// Release drops the handle of a finished stream.
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.handles[id]; ok {
		cancel()
		delete(s.handles, id)
	}
}

func (s *Store) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.clone())
	}
	return out
}

func (s *Store) Message(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[id]
	if !ok {
		return Message{}, false
	}
	return s.messages[pos].clone(), true
}

func (s *Store) Durations() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.durations))
	for k, v := range s.durations {
		out[k] = v
	}
	return out
}
