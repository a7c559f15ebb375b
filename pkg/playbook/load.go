package playbook

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Load reads and validates a play file.
func Load(path string) (*Play, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read play: %w", err)
	}
	play, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return play, nil
}

// Parse validates a play document from raw YAML. Structural problems
// (missing fields, unknown modules, dangling notify targets) are caught
// here, before any host runs; module parameter schemas are checked when the
// module is built.
func Parse(data []byte) (*Play, error) {
	var play Play
	if err := yaml.Unmarshal(data, &play); err != nil {
		return nil, fmt.Errorf("malformed play: %w", err)
	}

	if err := validate.Struct(&play); err != nil {
		return nil, fmt.Errorf("invalid play: %w", err)
	}

	for i, task := range play.Tasks {
		if task.Notify == "" {
			continue
		}
		if _, ok := play.Handlers[task.Notify]; !ok {
			return nil, fmt.Errorf("task %d (%q) notifies unknown handler %q", i+1, task.Name, task.Notify)
		}
	}

	for name, handler := range play.Handlers {
		if handler.Notify != "" {
			return nil, fmt.Errorf("handler %q must not notify another handler", name)
		}
	}

	return &play, nil
}
