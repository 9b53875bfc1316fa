package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-inventory-sync/core"
)

const (
	TypeCreateConnection = "inventory.command.connection.create"
	TypeSaveCredential   = "inventory.command.credential.save"
	TypeTriggerSync      = "inventory.command.sync.trigger"
	TypeDisconnect       = "inventory.command.connection.disconnect"
)

type CreateConnectionMessage struct {
	Input core.CreateConnectionInput
}

func (CreateConnectionMessage) Type() string { return TypeCreateConnection }

func (m CreateConnectionMessage) Validate() error {
	if strings.TrimSpace(m.Input.OwnerID) == "" {
		return fmt.Errorf("command: owner id is required")
	}
	if strings.TrimSpace(m.Input.Kind) == "" {
		return fmt.Errorf("command: connection kind is required")
	}
	return nil
}

type SaveCredentialMessage struct {
	Input core.UpsertCredentialInput
}

func (SaveCredentialMessage) Type() string { return TypeSaveCredential }

func (m SaveCredentialMessage) Validate() error {
	if strings.TrimSpace(m.Input.ConnectionID) == "" {
		return fmt.Errorf("command: connection id is required")
	}
	if strings.TrimSpace(m.Input.RefreshToken) == "" {
		return fmt.Errorf("command: refresh token is required")
	}
	return nil
}

type TriggerSyncMessage struct {
	ConnectionID string
}

func (TriggerSyncMessage) Type() string { return TypeTriggerSync }

func (m TriggerSyncMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return fmt.Errorf("command: connection id is required")
	}
	return nil
}

type DisconnectMessage struct {
	ConnectionID string
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	if strings.TrimSpace(m.ConnectionID) == "" {
		return fmt.Errorf("command: connection id is required")
	}
	return nil
}
