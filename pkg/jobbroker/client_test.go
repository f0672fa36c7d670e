package jobbroker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTrustKey = "super-secret-trust-key"

func trustKeyHashHex(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// startFakeBroker upgrades one connection, runs the connect-time
// trust-key handshake (sending trustKey, verifying the client's
// shared-secret reply is non-empty, then replying authorize), and
// hands every subsequent frame to handle.
func startFakeBroker(t *testing.T, trustKey string, authorize bool, handle func(conn *websocket.Conn, f frame)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		if err := conn.WriteJSON(frame{Type: frameHandshake, Payload: []byte(trustKey)}); err != nil {
			return
		}

		var reply frame
		if err := conn.ReadJSON(&reply); err != nil {
			return
		}
		if reply.Type != frameHandshake || len(reply.Payload) == 0 {
			return
		}

		if authorize {
			if err := conn.WriteJSON(frame{Type: frameAuthorized}); err != nil {
				return
			}
		} else {
			_ = conn.WriteJSON(frame{Type: frameDenied, Reason: "untrusted"})
			return
		}

		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			if f.Type == frameHeartbeat {
				continue
			}
			handle(conn, f)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestStartAuthorizesOnMatchingTrustKey(t *testing.T) {
	srv := startFakeBroker(t, testTrustKey, true, func(conn *websocket.Conn, f frame) {})

	client := New(wsURL(srv.URL), trustKeyHashHex(testTrustKey), "client-shared-secret", zerolog.Nop())
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, client.WaitForAuthorization(ctx))
}

func TestStartFailsOnTrustKeyMismatch(t *testing.T) {
	srv := startFakeBroker(t, "a-different-trust-key", true, func(conn *websocket.Conn, f frame) {})

	client := New(wsURL(srv.URL), trustKeyHashHex(testTrustKey), "client-shared-secret", zerolog.Nop())
	err := client.Start(context.Background())
	assert.Error(t, err)
}

func TestStartFailsWhenBrokerDenies(t *testing.T) {
	srv := startFakeBroker(t, testTrustKey, false, func(conn *websocket.Conn, f frame) {})

	client := New(wsURL(srv.URL), trustKeyHashHex(testTrustKey), "client-shared-secret", zerolog.Nop())
	err := client.Start(context.Background())
	assert.Error(t, err)
}

func TestSendJobDataRoundTrip(t *testing.T) {
	srv := startFakeBroker(t, testTrustKey, true, func(conn *websocket.Conn, f frame) {
		if f.Type == frameJobData {
			_ = conn.WriteJSON(frame{Type: frameJobDataReceived, JobID: f.JobID})
		}
	})

	client := New(wsURL(srv.URL), trustKeyHashHex(testTrustKey), "client-shared-secret", zerolog.Nop())
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := client.SendJobData(ctx, "job-1", []byte(`{"jobType":"package_version"}`))
	require.NoError(t, err)
}

func TestSendJobDataTimesOut(t *testing.T) {
	srv := startFakeBroker(t, testTrustKey, true, func(conn *websocket.Conn, f frame) {
		// never acknowledges job_data
	})

	client := New(wsURL(srv.URL), trustKeyHashHex(testTrustKey), "client-shared-secret", zerolog.Nop())
	require.NoError(t, client.Start(context.Background()))
	defer client.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := client.SendJobData(ctx, "job-2", []byte(`{}`))
	assert.Error(t, err)
}
