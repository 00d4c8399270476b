package agent

// ParseRanking converts an agent re-ranking payload into a task id -> rank
// map. The accepted shapes are {"order": [...]} and a bare array; entries
// are either task key strings or objects with a "task_key" field. Only
// recognized keys contribute; nil is returned when parsing yields nothing,
// and the caller falls back to pure dependency ordering.
func ParseRanking(payload any, keyToID map[string]string) map[string]int {
	items := payloadItems(payload, "order")
	if items == nil {
		return nil
	}

	ranks := make(map[string]int)
	next := 0
	for _, item := range items {
		var key string
		switch v := item.(type) {
		case string:
			key = v
		case map[string]any:
			key, _ = v["task_key"].(string)
		}
		id, ok := keyToID[key]
		if !ok {
			continue
		}
		if _, dup := ranks[id]; dup {
			continue
		}
		ranks[id] = next
		next++
	}

	if len(ranks) == 0 {
		return nil
	}
	return ranks
}
