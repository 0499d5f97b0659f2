package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/infra/ids"
	"github.com/jebauza/VetFlow/internal/infra/security"
	"github.com/jebauza/VetFlow/internal/pagination"
	"github.com/jebauza/VetFlow/internal/repository"
)

// memStore backs every repository port with maps so services can be exercised end to end.
type memStore struct {
	mu          sync.Mutex
	users       map[string]domain.User
	roles       map[string]domain.Role
	permissions map[string]domain.Permission
	userRoles   map[string]map[string]struct{}
	userPerms   map[string]map[string]struct{}
	rolePerms   map[string]map[string]struct{}

	failUserWrite error
	writes        int
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[string]domain.User),
		roles:       make(map[string]domain.Role),
		permissions: make(map[string]domain.Permission),
		userRoles:   make(map[string]map[string]struct{}),
		userPerms:   make(map[string]map[string]struct{}),
		rolePerms:   make(map[string]map[string]struct{}),
	}
}

func (s *memStore) addUser(user domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = ids.NewUUID()
	}
	s.users[user.ID] = user
	return user
}

func (s *memStore) addRole(name string) domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	role := domain.Role{ID: ids.NewUUID(), Name: name, CreatedAt: time.Now().UTC()}
	s.roles[role.ID] = role
	return role
}

func (s *memStore) addPermission(name string) domain.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	permission := domain.Permission{ID: ids.NewUUID(), Name: name, CreatedAt: time.Now().UTC()}
	s.permissions[permission.ID] = permission
	return permission
}

func (s *memStore) link(table map[string]map[string]struct{}, owner string, targets ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	linkLocked(table, owner, targets)
}

func linkLocked(table map[string]map[string]struct{}, owner string, targets []string) {
	set, ok := table[owner]
	if !ok {
		set = make(map[string]struct{})
		table[owner] = set
	}
	for _, target := range targets {
		set[target] = struct{}{}
	}
}

func (s *memStore) linked(table map[string]map[string]struct{}, owner string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(table[owner]))
	for id := range table[owner] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *memStore) repos() (*memUsers, *memRoles, *memPermissions, *memAssignments) {
	return &memUsers{s}, &memRoles{s}, &memPermissions{s}, &memAssignments{s}
}

type memUsers struct{ s *memStore }

func (r *memUsers) Create(_ context.Context, user domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failUserWrite != nil {
		return r.s.failUserWrite
	}
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrConflict
		}
	}
	r.s.users[user.ID] = user
	r.s.writes++
	return nil
}

func (r *memUsers) Update(_ context.Context, user domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failUserWrite != nil {
		return r.s.failUserWrite
	}
	current, ok := r.s.users[user.ID]
	if !ok || current.IsDeleted() {
		return repository.ErrNotFound
	}
	r.s.users[user.ID] = user
	r.s.writes++
	return nil
}

func (r *memUsers) SoftDelete(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.users[id]
	if !ok || current.IsDeleted() {
		return repository.ErrNotFound
	}
	current.DeletedAt = &at
	r.s.users[id] = current
	return nil
}

func (r *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok || user.IsDeleted() {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *memUsers) GetByIDWithDeleted(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Email == email && !user.IsDeleted() {
			found := user
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUsers) EmailTaken(_ context.Context, email string, excludeID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.ID != excludeID && strings.EqualFold(user.Email, strings.TrimSpace(email)) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUsers) listable(filter port.UserFilter) []domain.User {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.User, 0)
	for _, user := range r.s.users {
		if user.IsDeleted() || user.IsSuperAdmin {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(user.Name+" "+user.Surname+" "+user.Email), term) {
			continue
		}
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		return compareKeys(userSortKey(out[i]), userSortKey(out[j])) < 0
	})
	return out
}

func (r *memUsers) SearchPage(_ context.Context, filter port.UserFilter, req pagination.PageRequest) ([]domain.User, int64, error) {
	all := r.listable(filter)
	return window(all, req.Offset(), req.PerPage), int64(len(all)), nil
}

func (r *memUsers) SearchOffset(_ context.Context, filter port.UserFilter, req pagination.OffsetRequest) ([]domain.User, int64, error) {
	all := r.listable(filter)
	return window(all, req.Offset, req.Limit), int64(len(all)), nil
}

func (r *memUsers) SearchCursor(_ context.Context, filter port.UserFilter, query pagination.CursorQuery) ([]domain.User, error) {
	all := r.listable(filter)
	return keysetWindow(all, query, userSortKey, func(values []string) []string {
		if len(values) != 3 {
			return nil
		}
		return []string{strings.ToLower(values[0] + values[1]), values[2]}
	})
}

func (r *memUsers) MissingIDs(_ context.Context, idList []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	missing := make([]string, 0)
	for _, id := range idList {
		if user, ok := r.s.users[id]; !ok || user.IsDeleted() {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type memRoles struct{ s *memStore }

func (r *memRoles) Create(_ context.Context, role domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.roles {
		if existing.Name == role.Name {
			return repository.ErrConflict
		}
	}
	role.Permissions = nil
	r.s.roles[role.ID] = role
	return nil
}

func (r *memRoles) Rename(_ context.Context, id string, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, existing := range r.s.roles {
		if existing.ID != id && existing.Name == name {
			return repository.ErrConflict
		}
	}
	role.Name = name
	r.s.roles[id] = role
	return nil
}

func (r *memRoles) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.roles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.roles, id)
	delete(r.s.rolePerms, id)
	for _, set := range r.s.userRoles {
		delete(set, id)
	}
	return nil
}

func (r *memRoles) GetByID(_ context.Context, id string) (*domain.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &role, nil
}

func (r *memRoles) GetByName(_ context.Context, name string) (*domain.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, role := range r.s.roles {
		if role.Name == name {
			found := role
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRoles) List(_ context.Context, search string) ([]domain.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		if term != "" && !strings.Contains(strings.ToLower(role.Name), term) {
			continue
		}
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool {
		return compareKeys(roleSortKey(out[i]), roleSortKey(out[j])) < 0
	})
	return out, nil
}

func (r *memRoles) SearchPage(ctx context.Context, search string, req pagination.PageRequest) ([]domain.Role, int64, error) {
	all, _ := r.List(ctx, search)
	return window(all, req.Offset(), req.PerPage), int64(len(all)), nil
}

func (r *memRoles) SearchOffset(ctx context.Context, search string, req pagination.OffsetRequest) ([]domain.Role, int64, error) {
	all, _ := r.List(ctx, search)
	return window(all, req.Offset, req.Limit), int64(len(all)), nil
}

func (r *memRoles) SearchCursor(ctx context.Context, search string, query pagination.CursorQuery) ([]domain.Role, error) {
	all, _ := r.List(ctx, search)
	return keysetWindow(all, query, roleSortKey, func(values []string) []string {
		if len(values) != 2 {
			return nil
		}
		return []string{strings.ToLower(values[0]), values[1]}
	})
}

func (r *memRoles) MissingIDs(_ context.Context, idList []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	missing := make([]string, 0)
	for _, id := range idList {
		if _, ok := r.s.roles[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type memPermissions struct{ s *memStore }

func (r *memPermissions) Create(_ context.Context, permission domain.Permission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.permissions {
		if existing.Name == permission.Name {
			return repository.ErrConflict
		}
	}
	r.s.permissions[permission.ID] = permission
	return nil
}

func (r *memPermissions) GetByID(_ context.Context, id string) (*domain.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	permission, ok := r.s.permissions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &permission, nil
}

func (r *memPermissions) GetByName(_ context.Context, name string) (*domain.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, permission := range r.s.permissions {
		if permission.Name == name {
			found := permission
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memPermissions) List(_ context.Context, search string) ([]domain.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Permission, 0, len(r.s.permissions))
	for _, permission := range r.s.permissions {
		if term != "" && !strings.Contains(strings.ToLower(permission.Name), term) {
			continue
		}
		out = append(out, permission)
	}
	return domain.MergePermissions(out), nil
}

func (r *memPermissions) MissingIDs(_ context.Context, idList []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	missing := make([]string, 0)
	for _, id := range idList {
		if _, ok := r.s.permissions[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type memAssignments struct{ s *memStore }

func (r *memAssignments) RolesByUsers(_ context.Context, userIDs []string) (map[string][]domain.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string][]domain.Role)
	for _, userID := range userIDs {
		for roleID := range r.s.userRoles[userID] {
			out[userID] = append(out[userID], r.s.roles[roleID])
		}
		sort.Slice(out[userID], func(i, j int) bool { return out[userID][i].Name < out[userID][j].Name })
	}
	return out, nil
}

func (r *memAssignments) PermissionsByUsers(_ context.Context, userIDs []string) (map[string][]domain.Permission, error) {
	return r.permissionsOf(r.s.userPerms, userIDs), nil
}

func (r *memAssignments) PermissionsByRoles(_ context.Context, roleIDs []string) (map[string][]domain.Permission, error) {
	return r.permissionsOf(r.s.rolePerms, roleIDs), nil
}

func (r *memAssignments) permissionsOf(table map[string]map[string]struct{}, owners []string) map[string][]domain.Permission {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string][]domain.Permission)
	for _, owner := range owners {
		list := make([]domain.Permission, 0, len(table[owner]))
		for permissionID := range table[owner] {
			list = append(list, r.s.permissions[permissionID])
		}
		if len(list) > 0 {
			out[owner] = domain.MergePermissions(list)
		}
	}
	return out
}

func (r *memAssignments) AssignUserRoles(_ context.Context, userID string, roleIDs []string) error {
	return r.apply(r.s.userRoles, userID, roleIDs, false)
}

func (r *memAssignments) SyncUserRoles(_ context.Context, userID string, roleIDs []string) error {
	return r.apply(r.s.userRoles, userID, roleIDs, true)
}

func (r *memAssignments) AssignUserPermissions(_ context.Context, userID string, permissionIDs []string) error {
	return r.apply(r.s.userPerms, userID, permissionIDs, false)
}

func (r *memAssignments) SyncUserPermissions(_ context.Context, userID string, permissionIDs []string) error {
	return r.apply(r.s.userPerms, userID, permissionIDs, true)
}

func (r *memAssignments) AssignRolePermissions(_ context.Context, roleID string, permissionIDs []string) error {
	return r.apply(r.s.rolePerms, roleID, permissionIDs, false)
}

func (r *memAssignments) SyncRolePermissions(_ context.Context, roleID string, permissionIDs []string) error {
	return r.apply(r.s.rolePerms, roleID, permissionIDs, true)
}

func (r *memAssignments) apply(table map[string]map[string]struct{}, owner string, targets []string, replace bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if replace {
		delete(table, owner)
	}
	linkLocked(table, owner, targets)
	return nil
}

func userSortKey(user domain.User) []string {
	return []string{strings.ToLower(user.Name + user.Surname), user.ID}
}

func roleSortKey(role domain.Role) []string {
	return []string{strings.ToLower(role.Name), role.ID}
}

func compareKeys(left, right []string) int {
	for i := range left {
		if c := strings.Compare(left[i], right[i]); c != 0 {
			return c
		}
	}
	return 0
}

func window[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// keysetWindow mimics the SQL keyset predicate over a sorted slice.
func keysetWindow[T any](sorted []T, query pagination.CursorQuery, key func(T) []string, bound func([]string) []string) ([]T, error) {
	rows := make([]T, 0)
	if query.After == nil {
		rows = append(rows, sorted...)
	} else {
		pivot := bound(query.After.Values)
		if pivot == nil {
			return nil, pagination.ErrInvalidCursor
		}
		for _, item := range sorted {
			c := compareKeys(key(item), pivot)
			if (!query.Backward() && c > 0) || (query.Backward() && c < 0) {
				rows = append(rows, item)
			}
		}
		if query.Backward() {
			for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
	}
	if len(rows) > query.Fetch() {
		rows = rows[:query.Fetch()]
	}
	return rows, nil
}

type passThroughTx struct{ calls int }

func (t *passThroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type recordingPublisher struct {
	mu          sync.Mutex
	registered  []domain.UserRegisteredEvent
	deleted     []domain.UserDeletedEvent
	roles       []domain.RolesChangedEvent
	permissions []domain.PermissionsChangedEvent
	revoked     []domain.TokenRevokedEvent
}

func (p *recordingPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, event)
	return nil
}

func (p *recordingPublisher) PublishUserDeleted(_ context.Context, event domain.UserDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, event)
	return nil
}

func (p *recordingPublisher) PublishRolesChanged(_ context.Context, event domain.RolesChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles = append(p.roles, event)
	return nil
}

func (p *recordingPublisher) PublishPermissionsChanged(_ context.Context, event domain.PermissionsChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.permissions = append(p.permissions, event)
	return nil
}

func (p *recordingPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, event)
	return nil
}

// plainHasher is a reversible stand-in for argon2 that counts verifications.
type plainHasher struct {
	verifies int
}

func (h *plainHasher) Hash(password string) (string, error) {
	return "plain$" + password, nil
}

func (h *plainHasher) Verify(password, encoded string) (bool, error) {
	h.verifies++
	if !strings.HasPrefix(encoded, "plain$") {
		return false, errors.New("unknown hash format")
	}
	return encoded == "plain$"+password, nil
}

type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: make(map[string][]byte)}
}

func (b *memBlobs) Save(_ context.Context, r io.Reader, folder, ext string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	path := folder + "/" + ids.NewULID() + "." + ext
	b.blobs[path] = data
	return path, nil
}

func (b *memBlobs) Delete(_ context.Context, path string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.blobs[path]
	delete(b.blobs, path)
	return ok, nil
}

func (b *memBlobs) Exists(_ context.Context, path string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.blobs[path]
	return ok, nil
}

func (b *memBlobs) Open(_ context.Context, path string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[path]
	if !ok {
		return nil, port.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBlobs) URL(path string) *string {
	if path == "" {
		return nil
	}
	url := "http://localhost/storage/" + path
	return &url
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}

type stubNormalizer struct {
	err error
}

func (n stubNormalizer) Normalize(r io.Reader) ([]byte, string, error) {
	if n.err != nil {
		return nil, "", n.err
	}
	data, err := io.ReadAll(r)
	return data, "png", err
}

type stubPolicy struct {
	err error
}

func (p stubPolicy) Validate(string, ...string) error {
	return p.err
}

// fixture wires every service over one memStore.
type fixture struct {
	store       *memStore
	tx          *passThroughTx
	events      *recordingPublisher
	hasher      *plainHasher
	blobs       *memBlobs
	denylist    *security.MemoryDenylist
	pages       *pagination.Engine
	authz       *AuthorizationService
	tokens      *TokenService
	auth        *AuthService
	usersSvc    *UserService
	rolesSvc    *RoleService
	permissions *PermissionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store := newMemStore()
	users, roles, permissions, assignments := store.repos()

	provider, err := security.NewEphemeralKeyProvider("test-kid")
	if err != nil {
		t.Fatalf("key provider: %v", err)
	}

	f := &fixture{
		store:    store,
		tx:       &passThroughTx{},
		events:   &recordingPublisher{},
		hasher:   &plainHasher{},
		blobs:    newMemBlobs(),
		denylist: security.NewMemoryDenylist(security.MemoryDenylistOptions{}),
		pages:    pagination.NewEngine(pagination.DefaultLimits(), "cursor-secret"),
	}
	f.authz = NewAuthorizationService(users, roles, permissions, assignments, f.events, logger)
	f.tokens = NewTokenService(
		security.NewJWTManager(provider, "vetflow-test"),
		f.denylist,
		users,
		f.events,
		nil,
		TokenOptions{AccessTTL: time.Hour},
		logger,
	)
	f.auth = NewAuthService(users, f.hasher, stubPolicy{}, f.tokens, f.authz, f.blobs, f.events, logger)
	f.usersSvc = NewUserService(users, roles, assignments, f.authz, f.tx, f.hasher, f.blobs, stubNormalizer{}, f.pages, f.events, logger)
	f.rolesSvc = NewRoleService(roles, assignments, f.authz, f.tx, f.pages, f.events, logger)
	f.permissions = NewPermissionService(permissions)
	return f
}

func (f *fixture) seedUser(t *testing.T, email, name, surname string) domain.User {
	t.Helper()
	now := time.Now().UTC()
	return f.store.addUser(domain.User{
		ID:           ids.NewUUID(),
		Email:        email,
		Name:         name,
		Surname:      surname,
		PasswordHash: "plain$secret-password",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func requireFields(t *testing.T, err error, fields ...string) *ValidationError {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range fields {
		if len(verr.Fields[field]) == 0 {
			t.Fatalf("expected error on %q, got %v", field, verr.Fields)
		}
	}
	return verr
}
