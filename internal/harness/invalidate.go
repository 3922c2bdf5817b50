package harness

// resetFactories resets every fixture factory once, then the role caches.
func resetFactories(h *Components) {
	if h.Fixtures != nil {
		h.Fixtures.ResetAll()
	}
	resetRolesAndPolicyService(h)
}

// resetRolesAndPolicyService drops cached roles. After a truncate any role
// object still held in memory refers to a deleted row.
func resetRolesAndPolicyService(h *Components) {
	if h.Policy != nil {
		h.Policy.Reset()
	}
	if h.Roles != nil {
		h.Roles.ClearPendingNewRoles()
	}
}
