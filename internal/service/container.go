package service

import (
	"context"

	"masa-service/internal/service/lobby"
)

type Container struct {
	Lobby *lobby.Service
}

func NewContainer() *Container {
	return &Container{
		Lobby: lobby.NewService(),
	}
}

func (c *Container) Start(ctx context.Context) error {
	return c.Lobby.Start(ctx)
}
