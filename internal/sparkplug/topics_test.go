package sparkplug

import (
	"errors"
	"testing"
)

func TestTopics(t *testing.T) {
	topics := NewTopics("test_group", "test_node")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{name: "NBirth", got: topics.NBirth(), expected: "spBv1.0/test_group/NBIRTH/test_node"},
		{name: "NData", got: topics.NData(), expected: "spBv1.0/test_group/NDATA/test_node"},
		{name: "NDeath", got: topics.NDeath(), expected: "spBv1.0/test_group/NDEATH/test_node"},
		{name: "NCmd", got: topics.NCmd(), expected: "spBv1.0/test_group/NCMD/test_node"},
		{name: "empty namespace", got: Topics{Group: "g", Node: "n"}.NData(), expected: "spBv1.0/g/NDATA/n"},
		{name: "custom namespace", got: Topics{Namespace: "lab", Group: "g", Node: "n"}.NBirth(), expected: "lab/g/NBIRTH/n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestTopics_Validate(t *testing.T) {
	tests := []struct {
		name    string
		topics  Topics
		wantErr bool
	}{
		{name: "valid", topics: NewTopics("g", "n")},
		{name: "missing group", topics: NewTopics("", "n"), wantErr: true},
		{name: "missing node", topics: NewTopics("g", ""), wantErr: true},
		{name: "slash", topics: NewTopics("g/h", "n"), wantErr: true},
		{name: "wildcard", topics: NewTopics("g", "n+"), wantErr: true},
		{name: "hash", topics: NewTopics("#", "n"), wantErr: true},
		{name: "empty namespace defaults", topics: Topics{Group: "g", Node: "n"}},
		{name: "custom namespace", topics: Topics{Namespace: "spBv2.0", Group: "g", Node: "n"}},
		{name: "namespace slash", topics: Topics{Namespace: "spBv1.0/x", Group: "g", Node: "n"}, wantErr: true},
		{name: "namespace wildcard", topics: Topics{Namespace: "+", Group: "g", Node: "n"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.topics.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("Validate() error = %v, want ErrInvalidTopic", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestParseTopic(t *testing.T) {
	info, err := ParseTopic("spBv1.0/plant/NDATA/line-1")
	if err != nil {
		t.Fatalf("ParseTopic() error = %v", err)
	}
	if info.Group != "plant" || info.Node != "line-1" || info.Type != NData || info.Device != "" {
		t.Errorf("ParseTopic() = %+v", info)
	}
	if info.Topics().NData() != "spBv1.0/plant/NDATA/line-1" {
		t.Errorf("Topics().NData() = %q", info.Topics().NData())
	}

	info, err = ParseTopic("spBv1.0/plant/DDATA/line-1/pump")
	if err != nil {
		t.Fatalf("ParseTopic(device) error = %v", err)
	}
	if info.Device != "pump" || info.Type != DData {
		t.Errorf("ParseTopic(device) = %+v", info)
	}

	invalid := []string{
		"",
		"spBv1.0/plant/NDATA",
		"spBv1.0/plant/BOGUS/line-1",
		"/plant/NDATA/line-1",
		"spBv1.0//NDATA/line-1",
		"spBv1.0/plant/NDATA/line-1/dev/extra",
	}
	for _, topic := range invalid {
		if _, err := ParseTopic(topic); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ParseTopic(%q) error = %v, want ErrInvalidTopic", topic, err)
		}
	}
}
