package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users       *UserRepository
	Roles       *RoleRepository
	Permissions *PermissionRepository
	Assignments *AssignmentRepository
	Transactor  *Transactor
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(db DB) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(db),
		Roles:       NewRoleRepository(db),
		Permissions: NewPermissionRepository(db),
		Assignments: NewAssignmentRepository(db),
		Transactor:  NewTransactor(db),
	}
}
