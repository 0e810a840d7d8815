// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package notifier

import (
	"bufio"
	"crypto/hmac"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken     = "s3cret-t0ken"
	testChallenge = "xyzzy-challenge"
)

func TestTokenSignatureVector(t *testing.T) {
	// Precomputed HMAC-SHA256 over the exact payload bytes with testToken
	// as key
	payload := `{"serviceName":"quoll","username":"Steve","address":"203.0.113.7","timestamp":1735689600000,"challenge":"xyzzy-challenge"}`
	assert.Equal(
		t,
		"cwU7ClyO56TFypqcqRH5FR7SdUEazyb5xnxHy5VuXrU=",
		tokenSignature([]byte(payload), testToken),
	)
}

func TestTokenPayloadSerialization(t *testing.T) {
	payloadBytes, err := json.Marshal(tokenPayload{
		ServiceName: "quoll",
		Username:    "Steve",
		Address:     "203.0.113.7",
		Timestamp:   1735689600000,
		Challenge:   testChallenge,
	})
	require.NoError(t, err)
	assert.Equal(
		t,
		`{"serviceName":"quoll","username":"Steve","address":"203.0.113.7","timestamp":1735689600000,"challenge":"xyzzy-challenge"}`,
		string(payloadBytes),
	)
}

func TestParseTokenChallenge(t *testing.T) {
	challenge, err := parseTokenChallenge("VOTIFIER 2 abc123\n")
	require.NoError(t, err)
	assert.Equal(t, "abc123", challenge)

	_, err = parseTokenChallenge("VOTIFIER 1.9\n")
	require.Error(t, err)

	_, err = parseTokenChallenge("HELLO 2 abc123\n")
	require.Error(t, err)
}

// tokenTestServer accepts a single connection, performs the token protocol
// handshake and responds with the given status after verifying the frame and
// signature
func tokenTestServer(
	t *testing.T,
	status string,
) (net.Listener, <-chan tokenPayload) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	received := make(chan tokenPayload, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = fmt.Fprintf(conn, "VOTIFIER 2 %s\n", testChallenge)
		header := make([]byte, 4)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		if binary.BigEndian.Uint16(header[0:]) != tokenMessageMagic {
			_, _ = fmt.Fprintf(conn, `{"status":"error","error":"bad magic"}`)
			return
		}
		msgLen := binary.BigEndian.Uint16(header[2:])
		msgBytes := make([]byte, msgLen)
		if _, err := io.ReadFull(conn, msgBytes); err != nil {
			return
		}
		var msg tokenMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			_, _ = fmt.Fprintf(conn, `{"status":"error","error":"bad message"}`)
			return
		}
		expectedSig := tokenSignature([]byte(msg.Payload), testToken)
		if !hmac.Equal([]byte(expectedSig), []byte(msg.Signature)) {
			_, _ = fmt.Fprintf(conn, `{"status":"error","error":"bad signature"}`)
			return
		}
		var payload tokenPayload
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			_, _ = fmt.Fprintf(conn, `{"status":"error","error":"bad payload"}`)
			return
		}
		received <- payload
		_, _ = fmt.Fprintf(conn, `{"status":%q}`, status)
	}()
	return listener, received
}

func TestTokenDelivery(t *testing.T) {
	listener, received := tokenTestServer(t, "ok")
	defer listener.Close()
	host, port := listenerHostPort(t, listener)

	client := New(ClientConfig{Timeout: 5 * time.Second}, nil)
	result := client.Notify(t.Context(), Target{
		Address:  host,
		Port:     port,
		Protocol: ProtocolToken,
		Token:    testToken,
	}, testVote)
	require.True(t, result.Delivered, "delivery failed: %v", result.Err)

	select {
	case payload := <-received:
		assert.Equal(t, "quoll", payload.ServiceName)
		assert.Equal(t, "Steve", payload.Username)
		assert.Equal(t, "203.0.113.7", payload.Address)
		assert.Equal(t, int64(1735689600000), payload.Timestamp)
		// The challenge from the greeting must be echoed back
		assert.Equal(t, testChallenge, payload.Challenge)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for payload")
	}
}

func TestTokenRejected(t *testing.T) {
	listener, _ := tokenTestServer(t, "error")
	defer listener.Close()
	host, port := listenerHostPort(t, listener)

	client := New(ClientConfig{Timeout: 5 * time.Second}, nil)
	result := client.Notify(t.Context(), Target{
		Address:  host,
		Port:     port,
		Protocol: ProtocolToken,
		Token:    testToken,
	}, testVote)
	require.False(t, result.Delivered)
	assert.Equal(t, FailureRejected, result.Reason)
}

func TestTokenBadSignature(t *testing.T) {
	listener, _ := tokenTestServer(t, "ok")
	defer listener.Close()
	host, port := listenerHostPort(t, listener)

	client := New(ClientConfig{Timeout: 5 * time.Second}, nil)
	result := client.Notify(t.Context(), Target{
		Address:  host,
		Port:     port,
		Protocol: ProtocolToken,
		Token:    "wrong-token",
	}, testVote)
	require.False(t, result.Delivered)
	assert.Equal(t, FailureRejected, result.Reason)
}

func TestTokenResponseTimeout(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = fmt.Fprintf(conn, "VOTIFIER 2 %s\n", testChallenge)
		// Consume the request but never respond
		_, _ = bufio.NewReader(conn).Discard(4)
		<-done
	}()
	host, port := listenerHostPort(t, listener)

	client := New(ClientConfig{Timeout: 200 * time.Millisecond}, nil)
	result := client.Notify(t.Context(), Target{
		Address:  host,
		Port:     port,
		Protocol: ProtocolToken,
		Token:    testToken,
	}, testVote)
	require.False(t, result.Delivered)
	assert.Equal(t, FailureTimeout, result.Reason)
}

func TestUnknownProtocol(t *testing.T) {
	client := New(ClientConfig{}, nil)
	result := client.Notify(t.Context(), Target{
		Address:  "127.0.0.1",
		Port:     1,
		Protocol: Protocol("bogus"),
	}, testVote)
	require.False(t, result.Delivered)
	assert.Equal(t, FailureRejected, result.Reason)
}
