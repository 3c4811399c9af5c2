package lifecycle

import "sync"

// IdentityProvider supplies the signed-in user.
type IdentityProvider interface {
	Current() (user string, ok bool)
	Clear()
	// Subscribe calls fn after every identity change until cancel is called.
	Subscribe(fn func(user string, ok bool)) (cancel func())
}

// MemoryIdentity is an in-process IdentityProvider.
type MemoryIdentity struct {
	mu        sync.Mutex
	user      string
	nextID    int
	listeners map[int]func(string, bool)
}

// NewMemoryIdentity returns a provider signed in as user, or signed out
// when user is empty.
func NewMemoryIdentity(user string) *MemoryIdentity {
	return &MemoryIdentity{user: user, listeners: make(map[int]func(string, bool))}
}

// Current returns the signed-in user.
func (m *MemoryIdentity) Current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user, m.user != ""
}

// SignIn switches to user.
func (m *MemoryIdentity) SignIn(user string) {
	m.set(user)
}

// Clear signs out.
func (m *MemoryIdentity) Clear() {
	m.set("")
}

// Subscribe calls fn on every identity change until the returned func is called.
func (m *MemoryIdentity) Subscribe(fn func(string, bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

func (m *MemoryIdentity) set(user string) {
	m.mu.Lock()
	if m.user == user {
		m.mu.Unlock()
		return
	}
	m.user = user
	listeners := make([]func(string, bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(user, user != "")
	}
}
