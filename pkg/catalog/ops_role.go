package catalog

import "github.com/cuemby/catalogd/pkg/cowe"

// Roles have no CO handlers of their own (they are created
// only via the bootstrap default, and no other operation reads them);
// only the apply-side mutators are needed here.

func (s *Service) applyCreateRole(p *CreateRolePayload) error {
	if err := s.store.AddRole(p.Role); err != nil {
		return err
	}
	s.reg.mu.Lock()
	s.reg.rolesByName[p.Role.Name] = cowe.New(*p.Role)
	s.reg.mu.Unlock()
	return nil
}

func (s *Service) applyUpdateRole(p *UpdateRolePayload) error {
	if err := s.store.UpdateRole(p.Role); err != nil {
		return err
	}
	s.reg.mu.Lock()
	s.reg.rolesByName[p.Role.Name] = cowe.New(*p.Role)
	s.reg.mu.Unlock()
	return nil
}
