/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/carverauto/devscout/pkg/models"
)

const (
	defaultSSHPort           = 22
	defaultSSHConnectTimeout = 10 * time.Second
)

// SSHExecutor runs commands over SSH with password auth, one session
// per command. Host keys are not verified; learning targets are lab
// devices reachable only on the local segment.
type SSHExecutor struct {
	port           int
	connectTimeout time.Duration
}

var _ CommandExecutor = (*SSHExecutor)(nil)

// NewSSHExecutor returns an executor with default port and timeout.
func NewSSHExecutor() *SSHExecutor {
	return &SSHExecutor{
		port:           defaultSSHPort,
		connectTimeout: defaultSSHConnectTimeout,
	}
}

// Execute runs a single command on host and returns stdout and stderr.
// A non-zero exit status surfaces as an error with stderr still
// populated, so callers can inspect what the device said.
func (e *SSHExecutor) Execute(ctx context.Context, host, user, credential, command string) (string, string, error) {
	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(credential),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         e.connectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", host, e.port)

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return "", "", fmt.Errorf("ssh dial %s: %w", addr, classifySSHErr(err))
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("ssh session %s: %w", addr, classifyNetErr(err))
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer

	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)

	go func() {
		done <- session.Run(command)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		// Killing the session unblocks Run; the goroutine drains into
		// the buffered channel.
		_ = session.Signal(ssh.SIGKILL)

		return stdout.String(), stderr.String(), ctx.Err()
	}

	if err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("ssh run %q on %s: %w", command, addr, err)
	}

	return stdout.String(), stderr.String(), nil
}

// classifySSHErr maps authentication rejections to a permanent class;
// retrying bad credentials only trips lockouts.
func classifySSHErr(err error) error {
	if strings.Contains(err.Error(), "unable to authenticate") ||
		strings.Contains(err.Error(), "permission denied") {
		return fmt.Errorf("%w: %w", models.ErrAuthFailed, err)
	}

	return classifyNetErr(err)
}
