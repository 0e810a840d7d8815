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
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// tokenMessageMagic is the uint16 frame marker for token protocol messages
const tokenMessageMagic = uint16(0x733a)

// tokenPayload is the signed inner payload. Field order matters: the
// signature covers the serialized bytes, and the remote side verifies against
// the payload string exactly as transmitted.
type tokenPayload struct {
	ServiceName string `json:"serviceName"`
	Username    string `json:"username"`
	Address     string `json:"address"`
	Timestamp   int64  `json:"timestamp"`
	Challenge   string `json:"challenge"`
}

// tokenMessage is the framed outer message
type tokenMessage struct {
	Signature string `json:"signature"`
	Payload   string `json:"payload"`
}

// tokenResponse is the remote side's status response
type tokenResponse struct {
	Status string `json:"status"`
	Cause  string `json:"cause,omitempty"`
	Error  string `json:"error,omitempty"`
}

// tokenSignature computes the base64 HMAC-SHA256 signature over the payload
// bytes using the shared token as key
func tokenSignature(payload []byte, token string) string {
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// parseTokenChallenge extracts the server-issued challenge from a greeting
// line of the form "VOTIFIER 2 <challenge>"
func parseTokenChallenge(greeting string) (string, error) {
	fields := strings.Fields(greeting)
	if len(fields) < 3 || fields[0] != "VOTIFIER" {
		return "", fmt.Errorf(
			"unexpected votifier greeting: %q",
			strings.TrimSpace(greeting),
		)
	}
	return fields[2], nil
}

// notifyToken implements the token votifier protocol: read the challenge from
// the greeting, echo it inside an HMAC-signed JSON payload, send one framed
// message and read one status response.
func (c *Client) notifyToken(
	ctx context.Context,
	target Target,
	vote Vote,
) DeliveryResult {
	deadline := time.Now().Add(c.config.Timeout)
	conn, err := c.dial(ctx, target, deadline)
	if err != nil {
		return failed(FailureUnreachable, err)
	}
	defer conn.Close()
	connReader := bufio.NewReader(conn)
	greeting, err := connReader.ReadString('\n')
	if err != nil {
		if isTimeout(err) {
			return failed(FailureTimeout, err)
		}
		return failed(
			FailureUnreachable,
			fmt.Errorf("reading votifier greeting: %w", err),
		)
	}
	challenge, err := parseTokenChallenge(greeting)
	if err != nil {
		return failed(FailureUnreachable, err)
	}
	payloadBytes, err := json.Marshal(tokenPayload{
		ServiceName: vote.ServiceName,
		Username:    vote.Username,
		Address:     vote.Address,
		Timestamp:   vote.Timestamp.UnixMilli(),
		Challenge:   challenge,
	})
	if err != nil {
		return failed(FailureRejected, err)
	}
	msgBytes, err := json.Marshal(tokenMessage{
		Signature: tokenSignature(payloadBytes, target.Token),
		Payload:   string(payloadBytes),
	})
	if err != nil {
		return failed(FailureRejected, err)
	}
	if len(msgBytes) > 0xffff {
		return failed(
			FailureRejected,
			fmt.Errorf("vote message too large: %d bytes", len(msgBytes)),
		)
	}
	// Frame: uint16 magic, uint16 length, message bytes
	frame := make([]byte, 4+len(msgBytes))
	binary.BigEndian.PutUint16(frame[0:], tokenMessageMagic)
	binary.BigEndian.PutUint16(frame[2:], uint16(len(msgBytes))) // #nosec G115
	copy(frame[4:], msgBytes)
	if _, err := conn.Write(frame); err != nil {
		if isTimeout(err) {
			return failed(FailureTimeout, err)
		}
		return failed(FailureUnreachable, err)
	}
	var resp tokenResponse
	if err := json.NewDecoder(connReader).Decode(&resp); err != nil {
		if isTimeout(err) {
			return failed(FailureTimeout, err)
		}
		return failed(
			FailureRejected,
			fmt.Errorf("reading votifier response: %w", err),
		)
	}
	if resp.Status != "ok" {
		return failed(
			FailureRejected,
			fmt.Errorf(
				"remote rejected vote: status=%q cause=%q error=%q",
				resp.Status,
				resp.Cause,
				resp.Error,
			),
		)
	}
	return delivered()
}
