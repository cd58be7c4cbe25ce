package session

import "sync"

// Navigator is the view layer's location, as seen by the controller.
type Navigator interface {
	Location() string
	Navigate(path string)
}

// Router is an in-process Navigator.
type Router struct {
	mu          sync.Mutex
	location    string
	navigations int
}

// NewRouter starts a router at location.
func NewRouter(location string) *Router {
	return &Router{location: location}
}

// Location returns the current path.
func (r *Router) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// Navigate moves to path.
func (r *Router) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.location = path
	r.navigations++
}

// Navigations counts Navigate calls.
func (r *Router) Navigations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.navigations
}
