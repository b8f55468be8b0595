package action

import (
	"fmt"
	"strings"

	"github.com/dhmon/snmpcollector/models"
)

// Delimiter separates the components of a queue name.
const Delimiter = ":"

const (
	DefaultNamespace = "dhmon"
	DefaultComponent = "snmp"
)

// Namer computes queue names of the form
//
//	<namespace>:<component>:<instance>:<Kind>
//
// e.g. "dhmon:snmp:dc1:SnmpWalk". Every process of one pipeline must agree on
// Namespace and Component.
type Namer struct {
	Namespace string
	Component string
}

// DefaultNamer uses the "dhmon" namespace and "snmp" component.
var DefaultNamer = Namer{Namespace: DefaultNamespace, Component: DefaultComponent}

// NewNamer validates namespace and component. Empty values fall back to the
// defaults.
func NewNamer(namespace, component string) (Namer, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if component == "" {
		component = DefaultComponent
	}
	if strings.Contains(namespace, Delimiter) {
		return Namer{}, fmt.Errorf("action: namespace %q contains %q: %w", namespace, Delimiter, ErrInvalidInstanceIdentifier)
	}
	if strings.Contains(component, Delimiter) {
		return Namer{}, fmt.Errorf("action: component %q contains %q: %w", component, Delimiter, ErrInvalidInstanceIdentifier)
	}
	return Namer{Namespace: namespace, Component: component}, nil
}

// Queue returns the name of the queue carrying actions of kind k for instance.
func (n Namer) Queue(instance string, k models.Kind) (string, error) {
	if err := ValidateInstance(instance); err != nil {
		return "", err
	}
	if !k.Valid() {
		return "", fmt.Errorf("action: queue for kind %q: %w", k, ErrUnknownActionType)
	}
	return n.Namespace + Delimiter + n.Component + Delimiter + instance + Delimiter + string(k), nil
}

// Queues returns the queue names for each of kinds, in order.
func (n Namer) Queues(instance string, kinds ...models.Kind) ([]string, error) {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		q, err := n.Queue(instance, k)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// Parse splits a queue name produced by Queue back into instance and kind.
func (n Namer) Parse(queue string) (instance string, k models.Kind, err error) {
	prefix := n.Namespace + Delimiter + n.Component + Delimiter
	if !strings.HasPrefix(queue, prefix) {
		return "", "", fmt.Errorf("action: queue %q is outside %s: %w", queue, prefix, ErrInvalidInstanceIdentifier)
	}
	rest := strings.Split(strings.TrimPrefix(queue, prefix), Delimiter)
	if len(rest) != 2 || rest[0] == "" {
		return "", "", fmt.Errorf("action: queue %q: %w", queue, ErrInvalidInstanceIdentifier)
	}
	k, ok := models.ParseKind(rest[1])
	if !ok {
		return "", "", fmt.Errorf("action: queue %q kind %q: %w", queue, rest[1], ErrUnknownActionType)
	}
	return rest[0], k, nil
}

// QueueName is DefaultNamer.Queue.
func QueueName(instance string, k models.Kind) (string, error) {
	return DefaultNamer.Queue(instance, k)
}

// ValidateInstance rejects instance identifiers that are empty or contain the
// delimiter.
func ValidateInstance(instance string) error {
	if instance == "" {
		return fmt.Errorf("action: empty instance: %w", ErrInvalidInstanceIdentifier)
	}
	if strings.Contains(instance, Delimiter) {
		return fmt.Errorf("action: instance %q contains %q: %w", instance, Delimiter, ErrInvalidInstanceIdentifier)
	}
	return nil
}
