package pubsub

import (
	"fmt"
	"sort"
	"sync"
)

// TopicInfo documents a topic declared with NewEvent.
type TopicInfo struct {
	Name        string   `json:"name"`
	Module      string   `json:"module"`
	Description string   `json:"description"`
	Fields      []string `json:"fields"`
}

var (
	registryMu sync.RWMutex
	registry   = map[string]TopicInfo{}
)

func register(info TopicInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[info.Name]; exists {
		panic(fmt.Sprintf("pubsub: topic %q declared twice", info.Name))
	}
	registry[info.Name] = info
}

// Topics lists every declared topic sorted by name.
func Topics() []TopicInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]TopicInfo, 0, len(registry))
	for _, info := range registry {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
