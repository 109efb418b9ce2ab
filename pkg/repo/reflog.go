package repo

import (
	"fmt"
	"path/filepath"

	"github.com/odvcencio/snapfs/pkg/refs"
)

func (r *Repo) auditPath(ref string) string {
	return filepath.Join(r.Dir, "logs", filepath.FromSlash(ref))
}

// AppendAudit appends e to ref's audit log.
func (r *Repo) AppendAudit(ref string, e refs.Entry) error {
	if err := refs.ValidateRef(ref); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return refs.AppendFile(r.auditPath(ref), e)
}

// ReadAudit returns ref's audit log, oldest entry first.
func (r *Repo) ReadAudit(ref string) ([]refs.Entry, error) {
	if err := refs.ValidateRef(ref); err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	return refs.ReadFile(r.auditPath(ref))
}
