package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-inventory-sync/core"
)

type MutatingService interface {
	CreateConnection(ctx context.Context, in core.CreateConnectionInput) (core.Connection, error)
	SaveCredential(ctx context.Context, in core.UpsertCredentialInput) (core.Credential, error)
	Disconnect(ctx context.Context, connectionID string) error
}

// SyncStarter launches a sync run that outlives the caller. Start returns
// once the run is accepted; outcomes land on the connection's status row.
type SyncStarter interface {
	Start(ctx context.Context, connectionID string) error
}

type CreateConnectionCommand struct {
	service MutatingService
}

func NewCreateConnectionCommand(service MutatingService) *CreateConnectionCommand {
	return &CreateConnectionCommand{service: service}
}

func (c *CreateConnectionCommand) Execute(ctx context.Context, msg CreateConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection service is required")
	}
	out, err := c.service.CreateConnection(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SaveCredentialCommand struct {
	service MutatingService
}

func NewSaveCredentialCommand(service MutatingService) *SaveCredentialCommand {
	return &SaveCredentialCommand{service: service}
}

func (c *SaveCredentialCommand) Execute(ctx context.Context, msg SaveCredentialMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	out, err := c.service.SaveCredential(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type TriggerSyncCommand struct {
	starter SyncStarter
}

func NewTriggerSyncCommand(starter SyncStarter) *TriggerSyncCommand {
	return &TriggerSyncCommand{starter: starter}
}

func (c *TriggerSyncCommand) Execute(ctx context.Context, msg TriggerSyncMessage) error {
	if c == nil || c.starter == nil {
		return commandDependencyError("command: sync starter is required")
	}
	return c.starter.Start(ctx, msg.ConnectionID)
}

type DisconnectCommand struct {
	service MutatingService
}

func NewDisconnectCommand(service MutatingService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	return c.service.Disconnect(ctx, msg.ConnectionID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
