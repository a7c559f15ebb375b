package run

import (
	"context"
	"fmt"

	"github.com/droverhq/drover/pkg/inventory"
	"github.com/droverhq/drover/pkg/transport"
	"github.com/droverhq/drover/pkg/transport/local"
	"github.com/droverhq/drover/pkg/transport/ssh"
)

// Dialer opens an execution channel for a host. Tests substitute fakes.
type Dialer func(ctx context.Context, host inventory.Host) (transport.Channel, error)

// DefaultDialer connects according to the host's connection kind: in-process
// for local hosts, SSH for remote ones.
func DefaultDialer(ctx context.Context, host inventory.Host) (transport.Channel, error) {
	switch host.Connection {
	case inventory.ConnectionLocal:
		return local.New(), nil

	case inventory.ConnectionSSH:
		config := ssh.DefaultConfig(host.Address, host.User)
		if host.Port != 0 {
			config.Port = host.Port
		}
		if host.KeyPath != "" {
			config.AuthMethod = ssh.AuthMethodKey
			config.PrivateKeyPath = host.KeyPath
		} else {
			config.AuthMethod = ssh.AuthMethodPassword
			config.Password = host.Password
		}
		return ssh.Dial(ctx, config)

	default:
		return nil, &transport.Error{
			Op:   "dial",
			Host: host.Name,
			Err:  fmt.Errorf("unknown connection kind %q", host.Connection),
		}
	}
}
