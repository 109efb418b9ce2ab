package vfs

import (
	"fmt"

	"github.com/odvcencio/snapfs/pkg/object"
)

// CommitSigner signs the canonical commit payload (the commit serialized
// without its signature) and returns an armored signature.
type CommitSigner func(payload []byte) (string, error)

// writeCommit stores a commit over tree. A non-empty parent must exist.
func (s *Store) writeCommit(tree, parent object.Hash, message string) (object.Hash, *object.CommitObj, error) {
	if parent != "" {
		if _, err := s.backend.ReadCommit(parent); err != nil {
			return "", nil, fmt.Errorf("write commit: parent %s: %w", parent.Short(), notFound(err))
		}
	}

	c := &object.CommitObj{
		TreeHash:  tree,
		Parent:    parent,
		Author:    s.author,
		Timestamp: s.now().Unix(),
		Message:   message,
	}
	if s.signer != nil {
		sig, err := s.signer(object.CommitSigningPayload(c))
		if err != nil {
			return "", nil, fmt.Errorf("write commit: sign: %w", err)
		}
		c.Signature = sig
	}

	h, err := s.backend.PutCommit(c)
	if err != nil {
		return "", nil, fmt.Errorf("write commit: %w", err)
	}
	return h, c, nil
}
