package catalog

import (
	"github.com/cuemby/catalogd/pkg/catalogerr"
	"github.com/cuemby/catalogd/pkg/cowe"
	"github.com/cuemby/catalogd/pkg/types"
)

// CreateUDType implements the UDT Create wire request. Refuses
// duplicates within the namespace; requires field-name and field-type
// vectors of equal length.
func (s *Service) CreateUDType(namespaceID, name string, fieldNames, fieldTypes []string) (*types.UDType, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, err
	}
	defer adm.Release()

	if name == "" {
		return nil, catalogerr.New(catalogerr.KindInvalidArgument, "type name must not be empty")
	}
	if len(fieldNames) == 0 || len(fieldNames) != len(fieldTypes) {
		return nil, catalogerr.New(catalogerr.KindInvalidSchema, "type %q field-name and field-type vectors must be non-empty and equal length", name)
	}

	s.reg.mu.RLock()
	_, hasNS := s.reg.namespacesByID[namespaceID]
	_, exists := s.reg.udtsByNamespace[udtKey(namespaceID, name)]
	s.reg.mu.RUnlock()
	if !hasNS {
		return nil, catalogerr.New(catalogerr.KindNotFound, "namespace %s not found", namespaceID).WithCode("NAMESPACE_NOT_FOUND")
	}
	if exists {
		return nil, catalogerr.New(catalogerr.KindAlreadyPresent, "type %q already exists in namespace %s", name, namespaceID).WithCode("TYPE_ALREADY_PRESENT")
	}

	u := &types.UDType{
		ID:          newID(s.udtIDTaken),
		Name:        name,
		NamespaceID: namespaceID,
		FieldNames:  fieldNames,
		FieldTypes:  fieldTypes,
	}
	if err := s.apply(opCreateUDType, &CreateUDTypePayload{UDType: u}); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUDType implements the UDT Delete wire request. Refuses if any
// Table still references it. The precise moment this check races a
// concurrent reference is a documented open gap; see DESIGN.md.
func (s *Service) DeleteUDType(id string) error {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	_, ok := s.reg.udtsByID[id]
	s.reg.mu.RUnlock()
	if !ok {
		return catalogerr.New(catalogerr.KindNotFound, "type %s not found", id).WithCode("TYPE_NOT_FOUND")
	}

	if s.udtReferenced(id) {
		return catalogerr.New(catalogerr.KindNamespaceIsNotEmpty, "type %s is still referenced by a table", id)
	}

	return s.apply(opDeleteUDType, &DeleteUDTypePayload{ID: id})
}

func (s *Service) udtReferenced(udtID string) bool {
	s.reg.mu.RLock()
	defer s.reg.mu.RUnlock()
	for _, t := range s.reg.tablesByID {
		rg := t.LockForRead()
		schema := rg.Value().Schema
		state := rg.Value().State
		rg.Release()
		if state == types.TableStateDeleted {
			continue
		}
		for _, c := range schema.Columns {
			if c.Type == udtID {
				return true
			}
		}
	}
	return false
}

// GetUDType implements the UDT Get wire request.
func (s *Service) GetUDType(id string) (*types.UDType, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	u, ok := s.reg.udtsByID[id]
	s.reg.mu.RUnlock()
	if !ok {
		return nil, catalogerr.New(catalogerr.KindNotFound, "type %s not found", id).WithCode("TYPE_NOT_FOUND")
	}
	rg := u.LockForRead()
	defer rg.Release()
	v := rg.Value()
	return &v, nil
}

// ListUDTypes implements the UDT List wire request, scoped to a
// namespace.
func (s *Service) ListUDTypes(namespaceID string) ([]types.UDType, error) {
	adm, err := s.lsl.TryAdmit()
	if err != nil {
		return nil, err
	}
	defer adm.Release()

	s.reg.mu.RLock()
	defer s.reg.mu.RUnlock()

	var out []types.UDType
	for _, u := range s.reg.udtsByID {
		rg := u.LockForRead()
		v := rg.Value()
		rg.Release()
		if v.NamespaceID == namespaceID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Service) udtIDTaken(id string) bool {
	s.reg.mu.RLock()
	defer s.reg.mu.RUnlock()
	_, ok := s.reg.udtsByID[id]
	return ok
}

func (s *Service) applyCreateUDType(p *CreateUDTypePayload) error {
	if err := s.store.AddUDType(p.UDType); err != nil {
		return err
	}
	s.reg.mu.Lock()
	e := cowe.New(*p.UDType)
	s.reg.udtsByID[p.UDType.ID] = e
	s.reg.udtsByNamespace[udtKey(p.UDType.NamespaceID, p.UDType.Name)] = e
	s.reg.mu.Unlock()
	return nil
}

func (s *Service) applyDeleteUDType(p *DeleteUDTypePayload) error {
	s.reg.mu.Lock()
	u, ok := s.reg.udtsByID[p.ID]
	if ok {
		rg := u.LockForRead()
		v := rg.Value()
		rg.Release()
		delete(s.reg.udtsByNamespace, udtKey(v.NamespaceID, v.Name))
	}
	delete(s.reg.udtsByID, p.ID)
	s.reg.mu.Unlock()

	if !ok {
		return nil
	}
	return s.store.DeleteUDType(p.ID)
}
