// Package clipboard delivers artifact text to the system clipboard.
package clipboard

import (
	"github.com/atotto/clipboard"
)

// Copier sends text to a clipboard destination. The CLI depends on this
// interface so artifact delivery stays swappable in tests.
type Copier interface {
	Copy(text string) error
}

// Service is the Copier backed by github.com/atotto/clipboard.
type Service struct{}

// NewService returns the system clipboard copier used by the commit command.
func NewService() *Service {
	return &Service{}
}

// Copy places text on the system clipboard.
func (service *Service) Copy(text string) error {
	return clipboard.WriteAll(text)
}

var _ Copier = (*Service)(nil)
