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

// Package notifier implements the two votifier wire protocols used to tell a
// game server about an accepted vote so it can grant an in-game reward. The
// legacy protocol sends a single RSA-encrypted plaintext block with no
// acknowledgement; the token protocol sends an HMAC-signed framed message and
// reads a status response. Exactly one delivery attempt is made per call.
package notifier

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"
)

// DefaultTimeout bounds a whole notification attempt: connect, handshake and
// write/response
const DefaultTimeout = 5 * time.Second

// Protocol selects the votifier wire protocol for a target
type Protocol string

const (
	ProtocolLegacy Protocol = "legacy"
	ProtocolToken  Protocol = "token"
)

// Target is the notification configuration for a single game server
type Target struct {
	// Address is the hostname or IP of the target's votifier listener
	Address string
	// Port is the votifier listener port
	Port uint
	// Protocol selects legacy (RSA) or token (HMAC) framing
	Protocol Protocol
	// PublicKey is the target's RSA public key (legacy protocol only)
	PublicKey *rsa.PublicKey
	// Token is the shared secret (token protocol only)
	Token string
}

// Vote carries the fields transmitted to the target
type Vote struct {
	// ServiceName identifies this vote site to the target
	ServiceName string
	// Username is the voter's in-game name
	Username string
	// Address is the voter's source IP
	Address string
	// Timestamp is when the vote was accepted
	Timestamp time.Time
}

// FailureReason classifies a failed delivery attempt
type FailureReason string

const (
	FailureUnreachable FailureReason = "unreachable"
	FailureTimeout     FailureReason = "timeout"
	FailureRejected    FailureReason = "rejected"
)

// DeliveryResult is the outcome of a single notification attempt
type DeliveryResult struct {
	Delivered bool
	Reason    FailureReason
	Err       error
}

func delivered() DeliveryResult {
	return DeliveryResult{Delivered: true}
}

func failed(reason FailureReason, err error) DeliveryResult {
	return DeliveryResult{Reason: reason, Err: err}
}

// ClientConfig describes the notification client configuration
type ClientConfig struct {
	// Timeout bounds the whole attempt. Zero selects DefaultTimeout
	Timeout time.Duration
}

// Client sends reward notifications to votifier targets. It is stateless
// across invocations and safe for concurrent use.
type Client struct {
	config ClientConfig
	logger *slog.Logger
}

// New creates a new notification client
func New(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "notifier")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		config: cfg,
		logger: logger,
	}
}

// Notify makes a single delivery attempt for the given vote. It never blocks
// past the configured timeout and never returns an error to the caller beyond
// the classification inside DeliveryResult.
func (c *Client) Notify(
	ctx context.Context,
	target Target,
	vote Vote,
) DeliveryResult {
	var result DeliveryResult
	switch target.Protocol {
	case ProtocolLegacy:
		result = c.notifyLegacy(ctx, target, vote)
	case ProtocolToken:
		result = c.notifyToken(ctx, target, vote)
	default:
		result = failed(
			FailureRejected,
			fmt.Errorf("unknown votifier protocol: %q", target.Protocol),
		)
	}
	if result.Delivered {
		c.logger.Debug(
			"vote notification delivered",
			"address", target.Address,
			"port", target.Port,
			"protocol", string(target.Protocol),
		)
	} else {
		c.logger.Debug(
			"vote notification failed",
			"address", target.Address,
			"port", target.Port,
			"protocol", string(target.Protocol),
			"reason", string(result.Reason),
			"error", result.Err,
		)
	}
	return result
}

// dial opens the TCP connection for a notification attempt and applies the
// attempt-wide deadline to the connection
func (c *Client) dial(
	ctx context.Context,
	target Target,
	deadline time.Time,
) (net.Conn, error) {
	dialer := net.Dialer{
		Deadline: deadline,
	}
	addr := net.JoinHostPort(
		target.Address,
		strconv.FormatUint(uint64(target.Port), 10),
	)
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// isTimeout reports whether an I/O error was caused by the attempt deadline
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ParsePublicKey decodes a base64 X.509 (PKIX) RSA public key as stored in
// votifier plugin configuration
func ParsePublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid public key encoding: %w", err)
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type: %T", pub)
	}
	return rsaPub, nil
}
