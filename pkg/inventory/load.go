package inventory

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// document is the on-disk inventory shape.
type document struct {
	Groups map[string]group `yaml:"groups" validate:"required,min=1,dive"`
}

type group struct {
	Hosts []Host `yaml:"hosts" validate:"required,min=1,dive"`
}

var validate = validator.New()

// Load reads and resolves an inventory file.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	inv, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inv, nil
}

// Parse resolves an inventory document from raw YAML.
func Parse(data []byte) (*Inventory, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed inventory: %w", err)
	}

	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid inventory: %w", err)
	}

	if _, ok := doc.Groups[GroupAll]; ok {
		return nil, fmt.Errorf("group name %q is reserved", GroupAll)
	}

	inv := &Inventory{groups: make(map[string][]Host, len(doc.Groups)+1)}
	seen := make(map[string]string) // host name -> group it first appeared in

	// Deterministic order so duplicate reporting is stable.
	groupNames := make([]string, 0, len(doc.Groups))
	for name := range doc.Groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	var all []Host
	for _, groupName := range groupNames {
		g := doc.Groups[groupName]
		for _, h := range g.Hosts {
			if err := checkHost(h); err != nil {
				return nil, fmt.Errorf("group %q host %q: %w", groupName, h.Name, err)
			}
			if prev, dup := seen[h.Name]; dup {
				return nil, fmt.Errorf("host %q defined in both %q and %q", h.Name, prev, groupName)
			}
			seen[h.Name] = groupName
			all = append(all, applyDefaults(h))
		}
		hosts := make([]Host, len(g.Hosts))
		for i, h := range g.Hosts {
			hosts[i] = applyDefaults(h)
		}
		inv.groups[groupName] = hosts
	}

	inv.groups[GroupAll] = all
	return inv, nil
}

// checkHost enforces the connection-kind requirements the struct tags cannot
// express: ssh hosts need a credential reference.
func checkHost(h Host) error {
	if h.Connection == ConnectionSSH && !h.HasCredential() {
		return fmt.Errorf("ssh host requires key_path or password")
	}
	return nil
}

func applyDefaults(h Host) Host {
	if h.Connection == ConnectionSSH && h.Port == 0 {
		h.Port = 22
	}
	return h
}
