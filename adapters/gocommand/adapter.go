package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	inventorysync "github.com/goliatone/go-inventory-sync"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterFacade subscribes every command and query the facade exposes and
// registers them with the adapter. On any failure the subscriptions made so
// far are torn down before the error is returned.
func RegisterFacade(
	adapter *RegistryAdapter,
	facade *inventorysync.Facade,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if facade == nil {
		return nil, fmt.Errorf("gocommand: facade is required")
	}

	commands := facade.Commands()
	queries := facade.Queries()

	var subscriptions []commanddispatcher.Subscription
	unsubscribeAll := func() {
		for _, sub := range subscriptions {
			if sub != nil {
				sub.Unsubscribe()
			}
		}
	}

	register := func(handler any, subscription commanddispatcher.Subscription) error {
		if err := adapter.RegisterCommand(handler); err != nil {
			if subscription != nil {
				subscription.Unsubscribe()
			}
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	}

	if err := register(commands.CreateConnection, SubscribeCommand(commands.CreateConnection, runnerOpts...)); err != nil {
		unsubscribeAll()
		return nil, err
	}
	if err := register(commands.SaveCredential, SubscribeCommand(commands.SaveCredential, runnerOpts...)); err != nil {
		unsubscribeAll()
		return nil, err
	}
	if err := register(commands.TriggerSync, SubscribeCommand(commands.TriggerSync, runnerOpts...)); err != nil {
		unsubscribeAll()
		return nil, err
	}
	if err := register(commands.Disconnect, SubscribeCommand(commands.Disconnect, runnerOpts...)); err != nil {
		unsubscribeAll()
		return nil, err
	}
	if err := register(queries.GetSyncStatus, SubscribeQuery(queries.GetSyncStatus, runnerOpts...)); err != nil {
		unsubscribeAll()
		return nil, err
	}
	if err := register(queries.GetConnection, SubscribeQuery(queries.GetConnection, runnerOpts...)); err != nil {
		unsubscribeAll()
		return nil, err
	}
	if err := register(queries.ListOrganizations, SubscribeQuery(queries.ListOrganizations, runnerOpts...)); err != nil {
		unsubscribeAll()
		return nil, err
	}
	if err := register(queries.ListNetworks, SubscribeQuery(queries.ListNetworks, runnerOpts...)); err != nil {
		unsubscribeAll()
		return nil, err
	}
	if err := register(queries.ListDevices, SubscribeQuery(queries.ListDevices, runnerOpts...)); err != nil {
		unsubscribeAll()
		return nil, err
	}

	return subscriptions, nil
}
