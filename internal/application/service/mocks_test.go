package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/medikos/caseflow/internal/domain/entity"
)

// In-memory fakes shared by the service tests. They honor the same guard
// semantics the sqlite repositories implement (compare-and-set on state and
// version) so the orchestration paths can be exercised without a database.

type mockCaseRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*entity.Case
}

func newMockCaseRepo() *mockCaseRepo {
	return &mockCaseRepo{rows: make(map[int64]*entity.Case)}
}

func (m *mockCaseRepo) Create(ctx context.Context, c *entity.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *mockCaseRepo) GetByID(ctx context.Context, id int64) (*entity.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *mockCaseRepo) GetByPublicID(ctx context.Context, publicID string) (*entity.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.PublicID == publicID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockCaseRepo) UpdateState(ctx context.Context, id int64, expectVersion int, fromState, toState string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok || c.CurrentVersion != expectVersion || c.State != fromState {
		return false, nil
	}
	c.State = toState
	c.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockCaseRepo) AdvanceVersion(ctx context.Context, id int64, expectVersion int, newState string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok || c.CurrentVersion != expectVersion {
		return false, nil
	}
	c.CurrentVersion = expectVersion + 1
	c.State = newState
	c.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockCaseRepo) ListByState(ctx context.Context, state string, limit, offset int) ([]*entity.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Case
	for _, c := range m.rows {
		if c.State == state {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockCaseRepo) ListByIDs(ctx context.Context, ids []int64) ([]*entity.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Case
	for _, id := range ids {
		if c, ok := m.rows[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

type versionKey struct {
	caseID  int64
	version int
}

type mockVersionRepo struct {
	mu       sync.Mutex
	versions map[versionKey]*entity.CaseVersion
	items    map[versionKey][]entity.CaseItem
}

func newMockVersionRepo() *mockVersionRepo {
	return &mockVersionRepo{
		versions: make(map[versionKey]*entity.CaseVersion),
		items:    make(map[versionKey][]entity.CaseItem),
	}
}

func (m *mockVersionRepo) Create(ctx context.Context, v *entity.CaseVersion, items []entity.CaseItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := versionKey{v.CaseID, v.Version}
	if _, exists := m.versions[key]; exists {
		return fmt.Errorf("version %d already exists for case %d", v.Version, v.CaseID)
	}
	cp := *v
	m.versions[key] = &cp
	m.items[key] = append([]entity.CaseItem{}, items...)
	return nil
}

func (m *mockVersionRepo) Get(ctx context.Context, caseID int64, version int) (*entity.CaseVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.versions[versionKey{caseID, version}]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (m *mockVersionRepo) GetItems(ctx context.Context, caseID int64, version int) ([]*entity.CaseItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items[versionKey{caseID, version}]
	out := make([]*entity.CaseItem, 0, len(items))
	for i := range items {
		cp := items[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockVersionRepo) List(ctx context.Context, caseID int64) ([]*entity.CaseVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.CaseVersion
	for key, v := range m.versions {
		if key.caseID == caseID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *mockVersionRepo) UpdateTotals(ctx context.Context, caseID int64, version int, totals entity.Totals) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[versionKey{caseID, version}]
	if !ok {
		return fmt.Errorf("version %d not found for case %d", version, caseID)
	}
	v.CostCents = totals.CostCents
	v.BillCents = totals.BillCents
	v.MarginCents = totals.MarginCents
	return nil
}

func (m *mockVersionRepo) ReplaceItems(ctx context.Context, caseID int64, version int, items []entity.CaseItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[versionKey{caseID, version}] = append([]entity.CaseItem{}, items...)
	return nil
}

type mockAuditRepo struct {
	mu   sync.Mutex
	rows []*entity.AuditEvent
}

func (m *mockAuditRepo) Append(ctx context.Context, e *entity.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *mockAuditRepo) ListByCaseID(ctx context.Context, caseID int64) ([]*entity.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.AuditEvent
	for _, e := range m.rows {
		if e.CaseID == caseID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockNotifRepo struct {
	mu   sync.Mutex
	rows []*entity.Notification
}

func (m *mockNotifRepo) Create(ctx context.Context, n *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	cp.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, &cp)
	n.ID = cp.ID
	return nil
}

func (m *mockNotifRepo) matches(n *entity.Notification, recipients []string) bool {
	for _, r := range recipients {
		if n.Recipient == r {
			return true
		}
	}
	return false
}

func (m *mockNotifRepo) ListUnread(ctx context.Context, recipients []string, limit int) ([]*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for _, n := range m.rows {
		if !n.Read && m.matches(n, recipients) {
			cp := *n
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockNotifRepo) CountUnread(ctx context.Context, recipients []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.rows {
		if !n.Read && m.matches(n, recipients) {
			count++
		}
	}
	return count, nil
}

func (m *mockNotifRepo) MarkRead(ctx context.Context, ids []int64, recipients []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		for _, id := range ids {
			if n.ID == id && m.matches(n, recipients) {
				n.Read = true
			}
		}
	}
	return nil
}

func (m *mockNotifRepo) MarkAllRead(ctx context.Context, recipients []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if m.matches(n, recipients) {
			n.Read = true
		}
	}
	return nil
}

type mockAssignmentRepo struct {
	mu   sync.Mutex
	rows map[int64]*entity.Assignment
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{rows: make(map[int64]*entity.Assignment)}
}

func (m *mockAssignmentRepo) Get(ctx context.Context, caseID int64) (*entity.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rows[caseID]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *mockAssignmentRepo) Upsert(ctx context.Context, a *entity.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.rows[a.CaseID] = &cp
	return nil
}

func (m *mockAssignmentRepo) Touch(ctx context.Context, caseID int64, reviewerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rows[caseID]; ok && a.ReviewerID == reviewerID {
		a.ClaimedAt = at
	}
	return nil
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, caseID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, caseID)
	return nil
}

func (m *mockAssignmentRepo) ListByReviewer(ctx context.Context, reviewerID string) ([]*entity.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Assignment
	for _, a := range m.rows {
		if a.ReviewerID == reviewerID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockPusher struct {
	mu     sync.Mutex
	pushes map[string][]interface{}
}

func newMockPusher() *mockPusher {
	return &mockPusher{pushes: make(map[string][]interface{})}
}

func (m *mockPusher) Push(recipient string, payload interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes[recipient] = append(m.pushes[recipient], payload)
}
