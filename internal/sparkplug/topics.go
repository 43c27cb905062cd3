package sparkplug

import (
	"fmt"
	"strings"
)

// DefaultNamespace is the Sparkplug B topic namespace.
const DefaultNamespace = "spBv1.0"

// MessageType is the Sparkplug message type segment of a topic.
type MessageType string

// Sparkplug message types.
const (
	NBirth MessageType = "NBIRTH"
	NData  MessageType = "NDATA"
	NDeath MessageType = "NDEATH"
	NCmd   MessageType = "NCMD"
	DBirth MessageType = "DBIRTH"
	DData  MessageType = "DDATA"
	DDeath MessageType = "DDEATH"
	DCmd   MessageType = "DCMD"
)

// Valid reports whether m is a known Sparkplug message type.
func (m MessageType) Valid() bool {
	switch m {
	case NBirth, NData, NDeath, NCmd, DBirth, DData, DDeath, DCmd:
		return true
	default:
		return false
	}
}

// Topics provides builders for the topics of one edge node.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := sparkplug.NewTopics("plant-a", "line-1")
//	topics.NBirth() // "spBv1.0/plant-a/NBIRTH/line-1"
type Topics struct {
	Namespace string
	Group     string
	Node      string
}

// NewTopics returns Topics in the default namespace.
func NewTopics(group, node string) Topics {
	return Topics{Namespace: DefaultNamespace, Group: group, Node: node}
}

// =============================================================================
// Node Topics
// =============================================================================

// NBirth returns the node birth topic.
//
// Example: spBv1.0/plant-a/NBIRTH/line-1
func (t Topics) NBirth() string {
	return t.node(NBirth)
}

// NData returns the node data topic.
//
// Example: spBv1.0/plant-a/NDATA/line-1
func (t Topics) NData() string {
	return t.node(NData)
}

// NDeath returns the node death topic, also used as the MQTT will topic.
//
// Example: spBv1.0/plant-a/NDEATH/line-1
func (t Topics) NDeath() string {
	return t.node(NDeath)
}

// NCmd returns the node command topic.
//
// Example: spBv1.0/plant-a/NCMD/line-1
func (t Topics) NCmd() string {
	return t.node(NCmd)
}

func (t Topics) node(m MessageType) string {
	return fmt.Sprintf("%s/%s/%s/%s", t.namespace(), t.Group, m, t.Node)
}

func (t Topics) namespace() string {
	if t.Namespace == "" {
		return DefaultNamespace
	}
	return t.Namespace
}

// Validate checks that the namespace, group and node are usable topic
// segments. An empty namespace is allowed and means DefaultNamespace.
func (t Topics) Validate() error {
	if t.Namespace != "" {
		if err := validateID("namespace", t.Namespace); err != nil {
			return err
		}
	}
	if err := validateID("group", t.Group); err != nil {
		return err
	}
	return validateID("node", t.Node)
}

func validateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required", ErrInvalidTopic, kind)
	}
	if strings.ContainsAny(id, "/+#") {
		return fmt.Errorf("%w: %s id %q must not contain '/', '+' or '#'", ErrInvalidTopic, kind, id)
	}
	return nil
}

// =============================================================================
// Parsing
// =============================================================================

// TopicInfo is a parsed Sparkplug topic.
//
// Format: <namespace>/<group>/<type>/<node>[/<device>]
type TopicInfo struct {
	Namespace string
	Group     string
	Type      MessageType
	Node      string
	Device    string
}

// ParseTopic splits a Sparkplug topic into its parts.
func ParseTopic(topic string) (TopicInfo, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 || len(parts) > 5 {
		return TopicInfo{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if parts[0] == "" {
		return TopicInfo{}, fmt.Errorf("%w: empty namespace in %q", ErrInvalidTopic, topic)
	}

	info := TopicInfo{
		Namespace: parts[0],
		Group:     parts[1],
		Type:      MessageType(parts[2]),
		Node:      parts[3],
	}
	if len(parts) == 5 {
		info.Device = parts[4]
	}
	if !info.Type.Valid() {
		return TopicInfo{}, fmt.Errorf("%w: message type %q", ErrInvalidTopic, parts[2])
	}
	if info.Group == "" || info.Node == "" {
		return TopicInfo{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return info, nil
}

// Topics returns the node topic builder for info.
func (info TopicInfo) Topics() Topics {
	return Topics{Namespace: info.Namespace, Group: info.Group, Node: info.Node}
}
