package ecs

// World is the top-level ECS container. It owns the entity pool, the component
// registry, and a deferred destruction queue. A World belongs to the tick
// goroutine; nothing else may touch it.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Registry() *Registry { return w.registry }

// Spawn allocates a new entity with no components.
func (w *World) Spawn() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Len returns the number of live entities.
func (w *World) Len() int { return w.pool.Len() }

// Despawn removes every component of id and releases it immediately.
func (w *World) Despawn(id EntityID) bool {
	if !w.pool.Alive(id) {
		return false
	}
	w.registry.RemoveAll(id)
	return w.pool.Destroy(id)
}

// MarkForDestruction queues an entity for FlushDestroyQueue.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// FlushDestroyQueue despawns all queued entities.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		if w.Despawn(id) {
			n++
		}
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}
