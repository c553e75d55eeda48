package toolsurface

// componentStatus is one backing dependency's health (spec.md §6
// health_check: "status ∈ {healthy, degraded, unhealthy}").
type componentStatus string

const (
	statusHealthy   componentStatus = "healthy"
	statusDegraded  componentStatus = "degraded"
	statusUnhealthy componentStatus = "unhealthy"
)

// healthCheckResponse mirrors spec.md §6's health_check contract, naming
// the three backends by the original system's product names — neo4j (the
// graph index here), chromadb (the vector index here), and llm.
type healthCheckResponse struct {
	Status   componentStatus            `json:"status"`
	Services map[string]componentStatus `json:"services"`
}

// HealthCheck implements the health_check tool. Each backend is probed
// with the cheapest call that actually exercises its connection rather
// than a bare nil check: a harmless graph lookup, a vector count, and
// the llm client's configured model name (a real provider call is too
// expensive to run on every poll). An unconfigured vector index or llm
// reports degraded; an unconfigured graph reports unhealthy.
func (s *Surface) HealthCheck() Envelope {
	services := map[string]componentStatus{}
	overall := statusHealthy

	graphStatus := statusUnhealthy
	if s.graph != nil {
		if _, err := s.graph.FindNodeByNaturalKey("__health_probe__", "__health_probe__"); err == nil {
			graphStatus = statusHealthy
		}
	}
	services["neo4j"] = graphStatus

	vectorStatus := statusDegraded
	if s.vector != nil {
		vectorStatus = statusUnhealthy
		if _, err := s.vector.Count(""); err == nil {
			vectorStatus = statusHealthy
		}
	}
	services["chromadb"] = vectorStatus

	llmStatus := statusDegraded
	if s.llm != nil && s.llm.ModelName() != "" {
		llmStatus = statusHealthy
	}
	services["llm"] = llmStatus

	for _, st := range services {
		switch st {
		case statusUnhealthy:
			overall = statusUnhealthy
		case statusDegraded:
			if overall == statusHealthy {
				overall = statusDegraded
			}
		}
	}

	return ok(healthCheckResponse{Status: overall, Services: services})
}
