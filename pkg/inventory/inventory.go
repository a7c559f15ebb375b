// Package inventory loads and resolves the managed host list.
//
// An inventory is a YAML document of named groups, each holding hosts with
// their connection parameters. The pseudo-group "all" is materialized at
// load time as the union of every group.
package inventory

import (
	"fmt"
	"sort"
)

// GroupAll is the implicit group containing every host in the inventory.
// It is resolved as an explicit membership query at load time.
const GroupAll = "all"

// Connection is the kind of execution channel used to reach a host.
type Connection string

const (
	// ConnectionLocal runs operations in-process on the control machine.
	ConnectionLocal Connection = "local"

	// ConnectionSSH runs operations over an authenticated SSH session.
	ConnectionSSH Connection = "ssh"
)

// Host is one managed machine and its connection parameters.
type Host struct {
	// Name uniquely identifies the host within the inventory.
	Name string `yaml:"name" validate:"required"`

	// Connection selects the channel kind (local or ssh).
	Connection Connection `yaml:"connection" validate:"required,oneof=local ssh"`

	// Address is the hostname or IP to dial. Required for ssh hosts.
	Address string `yaml:"address,omitempty" validate:"required_if=Connection ssh"`

	// Port is the SSH port (default 22).
	Port int `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`

	// User is the remote username. Required for ssh hosts.
	User string `yaml:"user,omitempty" validate:"required_if=Connection ssh"`

	// KeyPath references the private key credential for this host.
	KeyPath string `yaml:"key_path,omitempty"`

	// Password is an inline password credential. KeyPath takes precedence.
	Password string `yaml:"password,omitempty"`
}

// Inventory is the resolved, immutable host list for one run.
type Inventory struct {
	groups map[string][]Host
}

// Group returns the hosts belonging to the named group.
func (inv *Inventory) Group(name string) ([]Host, bool) {
	hosts, ok := inv.groups[name]
	return hosts, ok
}

// Groups returns the sorted names of all groups, including "all".
func (inv *Inventory) Groups() []string {
	names := make([]string, 0, len(inv.groups))
	for name := range inv.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the total number of distinct hosts.
func (inv *Inventory) Len() int {
	return len(inv.groups[GroupAll])
}

// Host looks up a single host by name.
func (inv *Inventory) Host(name string) (Host, bool) {
	for _, h := range inv.groups[GroupAll] {
		if h.Name == name {
			return h, true
		}
	}
	return Host{}, false
}

// HasCredential reports whether the host carries a usable credential
// reference for SSH authentication.
func (h Host) HasCredential() bool {
	return h.KeyPath != "" || h.Password != ""
}

func (h Host) String() string {
	if h.Connection == ConnectionLocal {
		return fmt.Sprintf("%s (local)", h.Name)
	}
	return fmt.Sprintf("%s (%s@%s)", h.Name, h.User, h.Address)
}
