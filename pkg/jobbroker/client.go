package jobbroker

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/pkgforge/pkg/registryerrors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	reconnectBackoff  = 5 * time.Second
	heartbeatInterval = 5 * time.Second
	handshakeTimeout  = 10 * time.Second
)

// Client is a persistent connection to the external job broker. One
// Client serves every in-flight job for this registry instance; each
// call correlates its frames by JobID against a registry of waiting
// channels, analogous to the teacher's containers map.
type Client struct {
	url    string
	log    zerolog.Logger
	dialer *websocket.Dialer

	// trustKeyHash is the expected SHA-256 of the broker's trustKey
	// (spec §4.6 step 1); sharedSecret is sent back in the client's
	// handshake reply (step 2).
	trustKeyHash []byte
	sharedSecret []byte

	mu      sync.Mutex
	conn    *websocket.Conn
	waiters map[string]chan frame

	authMu     sync.Mutex
	authorized bool
	authCh     chan struct{}

	stopCh chan struct{}
	doneWg sync.WaitGroup
}

// New builds a Client targeting url (a ws:// or wss:// endpoint).
// trustKeyHashHex is the hex-encoded SHA-256 the broker's handshake
// trustKey must match; sharedSecret is the value the client sends back
// to authenticate itself (spec §4.6 steps 1-2). Call Start to dial,
// perform that handshake, and begin the background loops.
func New(url, trustKeyHashHex, sharedSecret string, log zerolog.Logger) *Client {
	hash, _ := hex.DecodeString(trustKeyHashHex)
	return &Client{
		url:          url,
		log:          log.With().Str("component", "jobbroker").Logger(),
		dialer:       websocket.DefaultDialer,
		trustKeyHash: hash,
		sharedSecret: []byte(sharedSecret),
		waiters:      make(map[string]chan frame),
		authCh:       make(chan struct{}),
		stopCh:       make(chan struct{}),
	}
}

// Start dials the broker, performs the trust-key handshake, and begins
// the reconnect and heartbeat loops. It returns once the connection is
// authorized; a trust-key mismatch is a fatal, unrecoverable error the
// caller should treat as a reason to exit (spec §4.6 step 1).
func (c *Client) Start(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return err
	}

	c.doneWg.Add(2)
	go c.readLoop()
	go c.heartbeatLoop()

	return nil
}

// setAuthorized updates the connection-level authorized flag,
// broadcasting to every WaitForAuthorization caller on a true
// transition and arming a fresh wait gate on a false one.
func (c *Client) setAuthorized(v bool) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	if v == c.authorized {
		return
	}
	c.authorized = v
	if v {
		close(c.authCh)
	} else {
		c.authCh = make(chan struct{})
	}
}

// WaitForAuthorization blocks until the connection-level handshake has
// authorized this Client, ctx expires, or the client is stopped. It is
// idempotent: if already authorized, it returns immediately.
func (c *Client) WaitForAuthorization(ctx context.Context) error {
	c.authMu.Lock()
	if c.authorized {
		c.authMu.Unlock()
		return nil
	}
	ch := c.authCh
	c.authMu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return registryerrors.Aborted.Wrap(ctx.Err())
	case <-c.stopCh:
		return registryerrors.Internal.New("job broker client stopped")
	}
}

// Stop sends a goodbye frame and tears down the connection.
func (c *Client) Stop() {
	close(c.stopCh)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = c.writeFrame(frame{Type: frameGoodbye})
		_ = conn.Close()
	}

	c.doneWg.Wait()
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return registryerrors.Internal.Wrap(fmt.Errorf("dial job broker: %w", err))
	}

	if err := c.handshake(conn); err != nil {
		_ = conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return nil
}

// handshake runs the connection-level trust-key challenge (spec §4.6
// steps 1-3): read the broker's handshake(trustKey), verify it against
// trustKeyHash, reply with handshake(sharedSecret), then wait for the
// broker's authorized verdict. A trust-key mismatch is unrecoverable —
// callers must treat the returned error as fatal, not retryable.
func (c *Client) handshake(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var hello frame
	if err := conn.ReadJSON(&hello); err != nil {
		return registryerrors.Internal.Wrap(fmt.Errorf("read job broker handshake: %w", err))
	}
	if hello.Type != frameHandshake {
		return registryerrors.Internal.New("expected handshake frame from job broker, got %s", hello.Type)
	}

	sum := sha256.Sum256(hello.Payload)
	if subtle.ConstantTimeCompare(sum[:], c.trustKeyHash) != 1 {
		return registryerrors.Internal.New("job broker trust key mismatch")
	}

	if err := conn.WriteJSON(frame{Type: frameHandshake, Payload: c.sharedSecret}); err != nil {
		return registryerrors.Internal.Wrap(fmt.Errorf("send job broker handshake reply: %w", err))
	}

	var reply frame
	if err := conn.ReadJSON(&reply); err != nil {
		return registryerrors.Internal.Wrap(fmt.Errorf("read job broker authorization: %w", err))
	}

	switch reply.Type {
	case frameAuthorized:
		c.setAuthorized(true)
		return nil
	case frameDenied:
		return registryerrors.Unauthorized.New("job broker denied connection: %s", reply.Reason)
	default:
		return registryerrors.Internal.New("expected authorized frame from job broker, got %s", reply.Type)
	}
}

func (c *Client) reconnectLoop() {
	for {
		select {
		case <-c.stopCh:
			return
		case <-time.After(reconnectBackoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		err := c.connect(ctx)
		cancel()
		if err != nil {
			c.log.Warn().Err(err).Msg("job broker reconnect failed, retrying")
			continue
		}

		c.log.Info().Msg("reconnected to job broker")
		c.doneWg.Add(1)
		go c.readLoop()
		return
	}
}

func (c *Client) readLoop() {
	defer c.doneWg.Done()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}
			c.log.Warn().Err(err).Msg("job broker connection lost, reconnecting")
			c.setAuthorized(false)
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			go c.reconnectLoop()
			return
		}

		c.dispatch(f)
	}
}

func (c *Client) dispatch(f frame) {
	c.mu.Lock()
	ch, ok := c.waiters[f.JobID]
	c.mu.Unlock()

	if !ok {
		c.log.Debug().Str("job_id", f.JobID).Str("type", string(f.Type)).Msg("no waiter for job broker frame")
		return
	}

	select {
	case ch <- f:
	default:
	}
}

func (c *Client) heartbeatLoop() {
	defer c.doneWg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.writeFrame(frame{Type: frameHeartbeat}); err != nil {
				c.log.Warn().Err(err).Msg("job broker heartbeat failed")
			}
		case <-c.stopCh:
			return
		}
	}
}

func (c *Client) writeFrame(f frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return registryerrors.Internal.New("job broker not connected")
	}
	return conn.WriteJSON(f)
}

func (c *Client) register(jobID string) chan frame {
	ch := make(chan frame, 4)
	c.mu.Lock()
	c.waiters[jobID] = ch
	c.mu.Unlock()
	return ch
}

func (c *Client) unregister(jobID string) {
	c.mu.Lock()
	delete(c.waiters, jobID)
	c.mu.Unlock()
}

// SendJobData streams payload for jobID and blocks for the broker's
// job_data_received acknowledgement (spec §4.6 steps 3-4). Callers
// must have already confirmed the connection is authorized via
// WaitForAuthorization.
func (c *Client) SendJobData(ctx context.Context, jobID string, payload []byte) error {
	ch := c.register(jobID)
	defer c.unregister(jobID)

	if err := c.writeFrame(frame{Type: frameJobData, JobID: jobID, Payload: payload}); err != nil {
		return err
	}

	select {
	case f := <-ch:
		if f.Type != frameJobDataReceived {
			return registryerrors.Internal.New("unexpected broker frame after job_data: %s", f.Type)
		}
		return nil
	case <-ctx.Done():
		return registryerrors.Aborted.Wrap(ctx.Err())
	case <-c.stopCh:
		return registryerrors.Internal.New("job broker client stopped")
	}
}

// NotifyDone tells the broker jobID finished successfully.
func (c *Client) NotifyDone(jobID string) error {
	return c.writeFrame(frame{Type: frameDone, JobID: jobID})
}

// NotifyAbort tells the broker jobID was aborted, with a human-readable
// reason.
func (c *Client) NotifyAbort(jobID, reason string) error {
	return c.writeFrame(frame{Type: frameAbort, JobID: jobID, Reason: reason})
}
