package registry

import "time"

// Health reports the number of live objects, per type.
func (r *Registry) Health() *HealthOutput {
	r.mu.RLock()
	byType := make(map[string]int)
	for _, h := range r.handles {
		byType[h.Type]++
	}
	n := len(r.handles)
	r.mu.RUnlock()

	return &HealthOutput{
		Status:    "healthy",
		Objects:   n,
		ByType:    byType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
