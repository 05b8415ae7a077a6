// Package objectstore is an HTTP object store backend. The server keeps
// a small in-memory side-table of ETags next to the stored objects, so
// a conditional PUT or DELETE compares If-Match against the stored ETag
// without re-hashing the object. The client's Modify re-reads the
// object after every conflict before retrying, so a stale ETag costs
// one extra round trip and never lets a stale write succeed.
package objectstore

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/gofiber/fiber/v2"
)

// Server exposes a flat key space of blob objects over HTTP:
//
//	GET  /objects/:loc   -> 200 body + ETag, or 404
//	PUT  /objects/:loc   -> If-Match: ETag, or "*" for create-only, or
//	                        absent for an unconditional write;
//	                        409 on mismatch, 200 + new ETag on success
//	DELETE /objects/:loc -> optional If-Match; 409 on mismatch, 404 if absent
type Server struct {
	mu      sync.Mutex
	objects map[string][]byte
	etags   map[string]string
}

// NewServer returns an empty in-process object store.
func NewServer() *Server {
	return &Server{objects: make(map[string][]byte), etags: make(map[string]string)}
}

func etagOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Register mounts the object store's routes onto app under prefix.
func (s *Server) Register(app *fiber.App, prefix string) {
	app.Get(prefix+"/:loc", s.handleGet)
	app.Put(prefix+"/:loc", s.handlePut)
	app.Delete(prefix+"/:loc", s.handleDelete)
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	loc := c.Params("loc")
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[loc]
	if !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}
	c.Set(fiber.HeaderETag, s.etags[loc])
	return c.Send(data)
}

func (s *Server) handlePut(c *fiber.Ctx) error {
	loc := c.Params("loc")
	ifMatch := c.Get(fiber.HeaderIfMatch)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.objects[loc]
	currentEtag := s.etags[loc]

	switch {
	case ifMatch == "*":
		if exists {
			return c.SendStatus(fiber.StatusConflict)
		}
	case ifMatch == "":
		// unconditional write
	case !exists || ifMatch != currentEtag:
		return c.SendStatus(fiber.StatusConflict)
	}
	_ = current

	body := append([]byte(nil), c.Body()...)
	newEtag := etagOf(body)
	s.objects[loc] = body
	s.etags[loc] = newEtag
	c.Set(fiber.HeaderETag, newEtag)
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	loc := c.Params("loc")
	ifMatch := c.Get(fiber.HeaderIfMatch)

	s.mu.Lock()
	defer s.mu.Unlock()

	currentEtag, exists := s.etags[loc]
	if !exists {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if ifMatch != "" && ifMatch != currentEtag {
		return c.SendStatus(fiber.StatusConflict)
	}
	delete(s.objects, loc)
	delete(s.etags, loc)
	return c.SendStatus(fiber.StatusOK)
}
