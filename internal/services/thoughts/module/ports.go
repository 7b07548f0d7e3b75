package module

import "thoughtsd/internal/services/thoughts/domain"

// Ports defines thoughts module ports exposed via the registry
type Ports struct {
	Server  domain.ServerPort
	Flusher domain.FlusherPort
	Stats   domain.StatsPort
}
