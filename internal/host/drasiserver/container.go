// BSD 2-Clause License
//
// Copyright (c) 2020, Andrea Giacomo Baldan
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// * Redistributions of source code must retain the above copyright notice, this
//   list of conditions and the following disclaimer.
//
// * Redistributions in binary form must reproduce the above copyright notice,
//   this list of conditions and the following disclaimer in the documentation
//   and/or other materials provided with the distribution.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package drasiserver

import (
	"context"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"

	"github.com/drasi-project/e2e-test-framework/internal/dispatch"
	"github.com/drasi-project/e2e-test-framework/internal/reaction/handler"
)

// ContainerConfig describes the image a Container-backed Drasi Server
// starts and the endpoint reported once running.
type ContainerConfig struct {
	Image    string
	Cmd      []string
	Endpoint string
}

// Container runs a Drasi Server as a Docker container, the same
// ImagePull/ContainerCreate/ContainerStart sequence as DockerPool's
// RunContainer. Out-of-process by construction: GetSourceHandle and
// GetReactionHandle always return false, since the source/reaction must
// reach this server over the network (HTTP/gRPC), not an in-process call.
type Container struct {
	cfg ContainerConfig
	cli *client.Client

	mu          sync.Mutex
	state       State
	containerID string
}

func NewContainer(cfg ContainerConfig, cli *client.Client) *Container {
	return &Container{cfg: cfg, cli: cli, state: StateNotStarted}
}

func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.cli.ImagePull(ctx, c.cfg.Image, types.ImagePullOptions{}); err != nil {
		c.state = StateError
		return errors.Wrap(err, "drasi server: pull image")
	}
	resp, err := c.cli.ContainerCreate(ctx, &container.Config{
		Image: c.cfg.Image,
		Cmd:   c.cfg.Cmd,
	}, nil, nil, "")
	if err != nil {
		c.state = StateError
		return errors.Wrap(err, "drasi server: create container")
	}
	if err := c.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		c.state = StateError
		return errors.Wrap(err, "drasi server: start container")
	}
	c.containerID = resp.ID
	c.state = StateRunning
	return nil
}

func (c *Container) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.containerID == "" {
		c.state = StateStopped
		return nil
	}
	if err := c.cli.ContainerStop(ctx, c.containerID, container.StopOptions{}); err != nil {
		c.state = StateError
		return errors.Wrap(err, "drasi server: stop container")
	}
	c.state = StateStopped
	return nil
}

func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Container) Endpoint() string { return c.cfg.Endpoint }

func (c *Container) GetSourceHandle(sourceId string) (dispatch.SUTInput, bool) {
	return nil, false
}

func (c *Container) GetReactionHandle(reactionId string) (handler.ResultHandle, bool) {
	return nil, false
}
