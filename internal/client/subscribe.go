package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/transport"
)

// feed is one websocket per session code shared by every subscription.
type feed struct {
	code   string
	refs   int
	cancel context.CancelFunc
}

// Subscribe delivers the current document and every later write until
// cancelled, ctx ends, or the server reports the session gone.
func (c *Client) Subscribe(ctx context.Context, code string) (<-chan session.Session, func(), error) {
	doc, err := c.Get(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	id, ch := c.docs.Subscribe(code)
	initial := *doc
	if last, ok := c.lastDoc[code]; ok && last.Version > initial.Version {
		initial = last
	} else {
		c.lastDoc[code] = initial
	}
	c.docs.Deliver(code, id, initial)
	f := c.acquireLocked(code)
	c.mu.Unlock()

	return ch, c.cancelFunc(ctx, f, func() { c.docs.Unsubscribe(code, id) }), nil
}

// SubscribeOnline delivers the online participants now and after every change.
func (c *Client) SubscribeOnline(ctx context.Context, code string) (<-chan []session.Participant, func(), error) {
	if _, err := c.Get(ctx, code); err != nil {
		return nil, nil, err
	}
	online, err := c.ListOnline(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	id, ch := c.presence.Subscribe(code)
	if last, ok := c.lastOnline[code]; ok {
		online = last
	}
	c.presence.Deliver(code, id, online)
	f := c.acquireLocked(code)
	c.mu.Unlock()

	return ch, c.cancelFunc(ctx, f, func() { c.presence.Unsubscribe(code, id) }), nil
}

func (c *Client) cancelFunc(ctx context.Context, f *feed, unsubscribe func()) func() {
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			unsubscribe()
			c.release(f)
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return func() {
		stop()
		cancel()
	}
}

func (c *Client) acquireLocked(code string) *feed {
	f, ok := c.feeds[code]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		f = &feed{code: code, cancel: cancel}
		c.feeds[code] = f
		go c.run(ctx, f)
	}
	f.refs++
	return f
}

func (c *Client) release(f *feed) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.refs--
	if f.refs > 0 || c.feeds[f.code] != f {
		return
	}
	c.dropLocked(f)
}

func (c *Client) dropLocked(f *feed) {
	delete(c.feeds, f.code)
	delete(c.lastDoc, f.code)
	delete(c.lastOnline, f.code)
	f.cancel()
}

// run keeps the feed's websocket connected until cancelled.
func (c *Client) run(ctx context.Context, f *feed) {
	log := c.logger.With("op", "client.feed", "code", f.code)
	backoff := c.minBackoff

	for {
		connected, err := c.stream(ctx, f.code)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errSessionGone) {
			log.Info("session closed by server")
			c.closeFeed(f)
			return
		}
		if connected {
			backoff = c.minBackoff
		}
		log.Warn("subscription dropped, reconnecting", "error", err, "backoff", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

func (c *Client) closeFeed(f *feed) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.feeds[f.code] != f {
		return
	}
	c.dropLocked(f)
	c.docs.CloseTopic(f.code)
	c.presence.CloseTopic(f.code)
}

func (c *Client) stream(ctx context.Context, code string) (bool, error) {
	wsURL, err := c.websocketURL(code)
	if err != nil {
		return false, err
	}
	header := http.Header{}
	header.Set(transport.UserHeader, c.user)

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, errSessionGone
		}
		return false, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var msg transport.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return true, err
		}
		switch msg.Type {
		case transport.MessageSession:
			if msg.Session != nil {
				c.publishDoc(code, *msg.Session)
			}
		case transport.MessageParticipants:
			c.publishOnline(code, msg.Participants)
		case transport.MessageClosed:
			return true, errSessionGone
		}
	}
}

func (c *Client) publishDoc(code string, doc session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.lastDoc[code]; ok && last.Version > doc.Version {
		return
	}
	c.lastDoc[code] = doc
	c.docs.Publish(code, doc)
}

func (c *Client) publishOnline(code string, online []session.Participant) {
	if online == nil {
		online = []session.Participant{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastOnline[code] = online
	c.presence.Publish(code, online)
}

func (c *Client) websocketURL(code string) (string, error) {
	u, err := url.Parse(c.baseURL + sessionPath(code) + "/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}
