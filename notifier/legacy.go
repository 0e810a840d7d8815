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
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"
)

// legacyGreetingPrefix is the tag the remote votifier listener sends as the
// first line of its handshake ("VOTIFIER <version>")
const legacyGreetingPrefix = "VOTIFIER"

// buildLegacyBlock assembles the plaintext vote block for the legacy
// protocol: a fixed opcode marker followed by the service name, voter name,
// voter source address and timestamp, newline separated. The remote side
// decrypts the whole block with its private key and splits on newlines.
func buildLegacyBlock(vote Vote) []byte {
	return fmt.Appendf(nil,
		"VOTE\n%s\n%s\n%s\n%d\n",
		vote.ServiceName,
		vote.Username,
		vote.Address,
		vote.Timestamp.UnixMilli(),
	)
}

// notifyLegacy implements the legacy votifier protocol: read the greeting
// line, RSA-encrypt the vote block with the target's public key (PKCS#1 v1.5
// over the whole block) and write it. The protocol has no application-level
// acknowledgement, so a successful write counts as delivered.
func (c *Client) notifyLegacy(
	ctx context.Context,
	target Target,
	vote Vote,
) DeliveryResult {
	if target.PublicKey == nil {
		return failed(
			FailureRejected,
			errors.New("legacy target has no public key"),
		)
	}
	deadline := time.Now().Add(c.config.Timeout)
	conn, err := c.dial(ctx, target, deadline)
	if err != nil {
		return failed(FailureUnreachable, err)
	}
	defer conn.Close()
	// Handshake: the remote side speaks first
	greeting, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return failed(
			FailureUnreachable,
			fmt.Errorf("reading votifier greeting: %w", err),
		)
	}
	if !strings.HasPrefix(greeting, legacyGreetingPrefix) {
		return failed(
			FailureUnreachable,
			fmt.Errorf("unexpected votifier greeting: %q", strings.TrimSpace(greeting)),
		)
	}
	block := buildLegacyBlock(vote)
	encrypted, err := rsa.EncryptPKCS1v15(rand.Reader, target.PublicKey, block)
	if err != nil {
		return failed(
			FailureRejected,
			fmt.Errorf("encrypting vote block: %w", err),
		)
	}
	if _, err := conn.Write(encrypted); err != nil {
		if isTimeout(err) {
			return failed(FailureTimeout, err)
		}
		return failed(FailureUnreachable, err)
	}
	return delivered()
}
