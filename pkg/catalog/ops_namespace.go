package catalog

import (
	"strings"

	"github.com/cuemby/catalogd/pkg/catalogerr"
	"github.com/cuemby/catalogd/pkg/cowe"
	"github.com/cuemby/catalogd/pkg/types"
)

// CreateNamespace implements the Namespace Create wire request.
// Refuses duplicate names; generates a fresh id by rejection sampling.
func (s *Service) CreateNamespace(name string) (*types.Namespace, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, err
	}
	defer adm.Release()

	if name == "" {
		return nil, catalogerr.New(catalogerr.KindInvalidArgument, "namespace name must not be empty")
	}

	s.reg.mu.RLock()
	_, exists := s.reg.namespacesByName[name]
	s.reg.mu.RUnlock()
	if exists {
		return nil, catalogerr.New(catalogerr.KindAlreadyPresent, "namespace %q already exists", name)
	}

	ns := &types.Namespace{ID: newID(s.namespaceIDTaken), Name: name}
	if err := s.apply(opCreateNamespace, &CreateNamespacePayload{Namespace: ns}); err != nil {
		return nil, err
	}
	return ns, nil
}

// DeleteNamespace implements the Namespace Delete wire request. Refuses
// if any Table or UDT still references it, and refuses the default
// namespace outright.
func (s *Service) DeleteNamespace(id string) error {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	ns, ok := s.reg.namespacesByID[id]
	s.reg.mu.RUnlock()
	if !ok {
		return catalogerr.New(catalogerr.KindNotFound, "namespace %s not found", id).WithCode("NAMESPACE_NOT_FOUND")
	}
	rg := ns.LockForRead()
	name := rg.Value().Name
	rg.Release()

	if name == "default" {
		return catalogerr.New(catalogerr.KindCannotDeleteDefaultNamespace, "the default namespace cannot be deleted")
	}

	if s.namespaceHasReferences(id) {
		return catalogerr.New(catalogerr.KindNamespaceIsNotEmpty, "namespace %s still has tables or types", id)
	}

	return s.apply(opDeleteNamespace, &DeleteNamespacePayload{ID: id})
}

func (s *Service) namespaceHasReferences(namespaceID string) bool {
	s.reg.mu.RLock()
	defer s.reg.mu.RUnlock()
	for _, t := range s.reg.tablesByID {
		rg := t.LockForRead()
		ns := rg.Value().NamespaceID
		state := rg.Value().State
		rg.Release()
		if ns == namespaceID && state != types.TableStateDeleted {
			return true
		}
	}
	for _, u := range s.reg.udtsByID {
		rg := u.LockForRead()
		ns := rg.Value().NamespaceID
		rg.Release()
		if ns == namespaceID {
			return true
		}
	}
	return false
}

// ListNamespaces implements the Namespace List wire request, optionally
// filtered by a case-sensitive name substring, matching ListTables's
// filter style.
func (s *Service) ListNamespaces(substring string) ([]types.Namespace, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	defer s.reg.mu.RUnlock()

	var out []types.Namespace
	for _, ns := range s.reg.namespacesByID {
		rg := ns.LockForRead()
		v := rg.Value()
		rg.Release()
		if substring == "" || strings.Contains(v.Name, substring) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Service) applyCreateNamespace(p *CreateNamespacePayload) error {
	if err := s.store.AddNamespace(p.Namespace); err != nil {
		return err
	}
	s.reg.mu.Lock()
	e := cowe.New(*p.Namespace)
	s.reg.namespacesByID[p.Namespace.ID] = e
	if p.Namespace.Name != "" {
		s.reg.namespacesByName[p.Namespace.Name] = e
	}
	s.reg.mu.Unlock()
	return nil
}

func (s *Service) applyDeleteNamespace(p *DeleteNamespacePayload) error {
	s.reg.mu.Lock()
	ns, ok := s.reg.namespacesByID[p.ID]
	if ok {
		rg := ns.LockForRead()
		name := rg.Value().Name
		rg.Release()
		delete(s.reg.namespacesByName, name)
	}
	delete(s.reg.namespacesByID, p.ID)
	s.reg.mu.Unlock()

	if !ok {
		return nil
	}
	return s.store.DeleteNamespace(p.ID)
}
