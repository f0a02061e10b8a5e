package authstate

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// State is the persisted login flag. Its presence on disk means "a member is
// considered logged in"; removing the file is the logout broadcast other
// processes observe.
type State struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	MemberID  string    `json:"memberId"`
	SavedAt   time.Time `json:"savedAt"`
}

// Event is delivered to subscribers whenever the login flag changes.
type Event struct {
	LoggedIn bool
}

// Store owns the login flag file. Changes made by this process notify
// in-process subscribers directly; changes made by other processes are picked
// up through an fsnotify watch on the flag's directory.
type Store struct {
	mu      sync.RWMutex
	path    string
	state   *State
	subs    []chan Event
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".reunion", "session.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	s := &Store{
		path: path,
		done: make(chan struct{}),
	}
	s.state = s.load()
	return s, nil
}

func (s *Store) load() *State {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		logrus.WithError(err).Warn("Login flag file is corrupt, treating as logged out")
		return nil
	}
	return &state
}

func (s *Store) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state != nil
}

// Token implements the session API's TokenProvider.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return ""
	}
	return s.state.Token
}

func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return ""
	}
	return s.state.SessionID
}

// Set persists the login flag and notifies in-process subscribers.
func (s *Store) Set(state State) error {
	state.SavedAt = time.Now()

	data, err := json.Marshal(&state)
	if err != nil {
		return err
	}

	// Write-then-rename so watchers never observe a partial file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = &state
	s.mu.Unlock()

	s.notify(Event{LoggedIn: true})
	return nil
}

// Clear removes the login flag and notifies in-process subscribers. Other
// processes learn about it through their fsnotify watch.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	s.mu.Lock()
	wasLoggedIn := s.state != nil
	s.state = nil
	s.mu.Unlock()

	if wasLoggedIn {
		s.notify(Event{LoggedIn: false})
	}
	return nil
}

// Subscribe returns a channel receiving login-state changes. Slow consumers
// miss intermediate events rather than blocking the store.
func (s *Store) Subscribe() <-chan Event {
	ch := make(chan Event, 4)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notify(event Event) {
	s.mu.RLock()
	subs := make([]chan Event, len(s.subs))
	copy(subs, s.subs)
	s.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Watch starts observing the flag's directory so removals performed by other
// processes reach this one's subscribers.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	go s.watchLoop(watcher)
	return nil
}

func (s *Store) watchLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != s.path {
				continue
			}
			s.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Warn("Login flag watcher error")
		}
	}
}

// reload re-reads the flag file and notifies only on actual transitions, so
// our own writes (already notified) do not produce duplicate events.
func (s *Store) reload() {
	fresh := s.load()

	s.mu.Lock()
	was := s.state != nil
	now := fresh != nil
	s.state = fresh
	s.mu.Unlock()

	if was != now {
		logrus.WithField("logged_in", now).Debug("Login flag changed on disk")
		s.notify(Event{LoggedIn: now})
	}
}

func (s *Store) Close() error {
	close(s.done)

	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher != nil {
		return watcher.Close()
	}
	return nil
}
