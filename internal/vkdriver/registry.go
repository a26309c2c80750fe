package vkdriver

// registry maps the opaque ids handed to the core packages back to driver
// objects. Id 0 is never issued.
type registry[T any] struct {
	next    uint64
	objects map[uint64]T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{objects: make(map[uint64]T)}
}

func (r *registry[T]) put(object T) uint64 {
	r.next++
	r.objects[r.next] = object
	return r.next
}

func (r *registry[T]) get(id uint64) (T, bool) {
	object, ok := r.objects[id]
	return object, ok
}

// drop removes id and returns the object it referred to.
func (r *registry[T]) drop(id uint64) (T, bool) {
	object, ok := r.objects[id]
	delete(r.objects, id)
	return object, ok
}

func (r *registry[T]) len() int {
	return len(r.objects)
}
