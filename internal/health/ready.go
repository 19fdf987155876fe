package health

import "sync"

// Readiness 各帧来源的就绪状态；全部就绪才对外 ready
type Readiness struct {
	mu      sync.RWMutex
	sources map[string]bool
}

func New() *Readiness { return &Readiness{sources: make(map[string]bool)} }

// Expect 登记需要等待的来源（初始未就绪）
func (r *Readiness) Expect(name string) { r.Set(name, false) }

func (r *Readiness) Set(name string, ready bool) {
	r.mu.Lock()
	r.sources[name] = ready
	r.mu.Unlock()
}

// Ready 至少登记一个来源且全部就绪
func (r *Readiness) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.sources) == 0 {
		return false
	}
	for _, ok := range r.sources {
		if !ok {
			return false
		}
	}
	return true
}
