package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateConnectionMessage] = (*CreateConnectionCommand)(nil)
	_ gocmd.Commander[SaveCredentialMessage]   = (*SaveCredentialCommand)(nil)
	_ gocmd.Commander[TriggerSyncMessage]      = (*TriggerSyncCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]       = (*DisconnectCommand)(nil)
)
