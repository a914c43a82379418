package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stanstork/alert-api/internal/event"
	"github.com/stanstork/alert-api/internal/models"
	"github.com/stanstork/alert-api/internal/registry"
	"github.com/stanstork/alert-api/internal/repository"
)

// stubAlert is a minimal configurable alert type for tests.
type stubAlert struct {
	title string
	def   registry.Default
	bind  registry.Binding
	users interface{}
}

func (s stubAlert) Title() string             { return s.title }
func (s stubAlert) Default() registry.Default { return s.def }
func (s stubAlert) Binding() registry.Binding { return s.bind }

func (s stubAlert) ApplicableUsers(evt event.Event) interface{} {
	if f, ok := s.users.(func(event.Event) interface{}); ok {
		return f(evt)
	}
	return s.users
}

// filteredAlert adds a Before hook.
type filteredAlert struct {
	stubAlert
	allow func(evt event.Event) bool
}

func (f filteredAlert) Before(evt event.Event) bool { return f.allow(evt) }

// scheduledAlert adds a SendTime hook.
type scheduledAlert struct {
	stubAlert
	at time.Time
}

func (s scheduledAlert) SendTime(event.Event) time.Time { return s.at }

// stubBackend records sends and fails according to a script.
type stubBackend struct {
	mu     sync.Mutex
	sent   []models.Alert
	script []error // consumed per send; exhausted script means success
}

func (b *stubBackend) Title() string { return "Stub" }

func (b *stubBackend) Send(_ context.Context, alert models.Alert) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if len(b.script) > 0 {
		err, b.script = b.script[0], b.script[1:]
	}
	if err == nil {
		b.sent = append(b.sent, alert)
	}
	return err
}

func (b *stubBackend) sendCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

// stubSource maps template names to fixed output.
type stubSource struct {
	templates map[string]string
	rendered  []string
}

func (s *stubSource) Exists(name string) bool {
	_, ok := s.templates[name]
	return ok
}

func (s *stubSource) Render(name string, _ map[string]interface{}) (string, error) {
	out, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %s", name)
	}
	s.rendered = append(s.rendered, name)
	return out, nil
}

// fakeAlertRepo is an in-memory repository.AlertRepository.
type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]models.Alert
	order  []string
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[string]models.Alert)}
}

func (r *fakeAlertRepo) Create(_ context.Context, alert models.Alert) (models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Created.IsZero() {
		alert.Created = time.Now()
	}
	r.alerts[alert.ID] = alert
	r.order = append(r.order, alert.ID)
	return alert, nil
}

func (r *fakeAlertRepo) ListPending(_ context.Context, now time.Time, maxAttempts int) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []models.Alert
	for _, id := range r.order {
		alert := r.alerts[id]
		if !alert.Due(now) {
			continue
		}
		if maxAttempts > 0 && alert.Attempts >= maxAttempts {
			continue
		}
		due = append(due, alert)
	}
	return due, nil
}

func (r *fakeAlertRepo) MarkAttempt(_ context.Context, alertID string, sent bool, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[alertID]
	if !ok || alert.IsSent {
		return false, nil
	}
	alert.IsSent = sent
	alert.Failed = !sent
	t := at
	alert.LastAttempt = &t
	alert.Attempts++
	r.alerts[alertID] = alert
	return true, nil
}

func (r *fakeAlertRepo) DeleteUnsent(_ context.Context, userID string, alertTypes, backends []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteUnsentLocked(userID, alertTypes, backends), nil
}

func (r *fakeAlertRepo) deleteUnsentLocked(userID string, alertTypes, backends []string) int64 {
	var deleted int64
	var kept []string
	for _, id := range r.order {
		alert := r.alerts[id]
		if alert.UserID == userID && !alert.IsSent &&
			matchFilter(alertTypes, alert.AlertType) && matchFilter(backends, alert.Backend) {
			delete(r.alerts, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return deleted
}

func (r *fakeAlertRepo) ListForUser(_ context.Context, userID string, limit int) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Alert
	for _, id := range r.order {
		if alert := r.alerts[id]; alert.UserID == userID {
			out = append(out, alert)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAlertRepo) get(id string) models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alerts[id]
}

func (r *fakeAlertRepo) all() []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Alert, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.alerts[id])
	}
	return out
}

func matchFilter(filter []string, value string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, v := range filter {
		if v == value {
			return true
		}
	}
	return false
}

// fakePrefRepo is an in-memory repository.PreferenceRepository. The
// unsubscribe cascade reaches into the linked alert repo the way the SQL
// implementation reaches into the alerts table.
type fakePrefRepo struct {
	mu            sync.Mutex
	rows          map[string]models.AlertPreference
	alertRepo     *fakeAlertRepo
	listTypeCalls int
}

func newFakePrefRepo(alertRepo *fakeAlertRepo) *fakePrefRepo {
	return &fakePrefRepo{rows: make(map[string]models.AlertPreference), alertRepo: alertRepo}
}

func prefRowKey(userID, alertType, backend string) string {
	return userID + "|" + alertType + "|" + backend
}

func (r *fakePrefRepo) Upsert(_ context.Context, pref models.AlertPreference) (models.AlertPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := prefRowKey(pref.UserID, pref.AlertType, pref.Backend)
	if existing, ok := r.rows[key]; ok {
		existing.Preference = pref.Preference
		existing.UpdatedAt = time.Now()
		r.rows[key] = existing
		return existing, nil
	}
	if pref.ID == "" {
		pref.ID = uuid.NewString()
	}
	pref.UpdatedAt = time.Now()
	r.rows[key] = pref
	return pref, nil
}

func (r *fakePrefRepo) ListForType(_ context.Context, alertType string, userIDs []string) ([]models.AlertPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listTypeCalls++
	var out []models.AlertPreference
	for _, row := range r.rows {
		if row.AlertType != alertType {
			continue
		}
		for _, id := range userIDs {
			if row.UserID == id {
				out = append(out, row)
				break
			}
		}
	}
	return out, nil
}

func (r *fakePrefRepo) ListForUser(_ context.Context, userID string) ([]models.AlertPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AlertPreference
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakePrefRepo) Unsubscribe(_ context.Context, userID string, alertTypes, backends []string) (repository.UnsubscribeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result repository.UnsubscribeResult
	for key, row := range r.rows {
		if row.UserID == userID && matchFilter(alertTypes, row.AlertType) && matchFilter(backends, row.Backend) {
			if row.Preference {
				result.PreferencesSet++
			}
			row.Preference = false
			r.rows[key] = row
		}
	}

	r.alertRepo.mu.Lock()
	result.AlertsDeleted = r.alertRepo.deleteUnsentLocked(userID, alertTypes, backends)
	r.alertRepo.mu.Unlock()
	return result, nil
}

func (r *fakePrefRepo) value(userID, alertType, backend string) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[prefRowKey(userID, alertType, backend)]
	return row.Preference, ok
}

// fakeBroadcastRepo is an in-memory repository.BroadcastRepository.
type fakeBroadcastRepo struct {
	mu   sync.Mutex
	rows map[string]models.AdminAlert
}

func newFakeBroadcastRepo() *fakeBroadcastRepo {
	return &fakeBroadcastRepo{rows: make(map[string]models.AdminAlert)}
}

func (r *fakeBroadcastRepo) Create(_ context.Context, broadcast models.AdminAlert) (models.AdminAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if broadcast.ID == "" {
		broadcast.ID = uuid.NewString()
	}
	broadcast.CreatedAt = time.Now()
	broadcast.UpdatedAt = broadcast.CreatedAt
	r.rows[broadcast.ID] = broadcast
	return broadcast, nil
}

func (r *fakeBroadcastRepo) Update(_ context.Context, broadcast models.AdminAlert) (models.AdminAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[broadcast.ID]
	if !ok {
		return models.AdminAlert{}, fmt.Errorf("broadcast %s not found", broadcast.ID)
	}
	if existing.Sent {
		return models.AdminAlert{}, repository.ErrBroadcastSent
	}
	existing.Title = broadcast.Title
	existing.Body = broadcast.Body
	existing.Recipients = broadcast.Recipients
	existing.SendAt = broadcast.SendAt
	existing.Draft = broadcast.Draft
	existing.UpdatedAt = time.Now()
	r.rows[broadcast.ID] = existing
	return existing, nil
}

func (r *fakeBroadcastRepo) Get(_ context.Context, id string) (models.AdminAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	broadcast, ok := r.rows[id]
	if !ok {
		return models.AdminAlert{}, fmt.Errorf("broadcast %s not found", id)
	}
	return broadcast, nil
}

func (r *fakeBroadcastRepo) List(_ context.Context, _ int) ([]models.AdminAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AdminAlert, 0, len(r.rows))
	for _, broadcast := range r.rows {
		out = append(out, broadcast)
	}
	return out, nil
}

func (r *fakeBroadcastRepo) MarkSent(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	broadcast, ok := r.rows[id]
	if !ok || broadcast.Sent {
		return false, nil
	}
	broadcast.Draft = false
	broadcast.Sent = true
	r.rows[id] = broadcast
	return true, nil
}

// fakeUserRepo implements the slice of repository.UserRepository the engine
// needs.
type fakeUserRepo struct {
	users []models.User
}

func (r *fakeUserRepo) CreateUser(_ context.Context, email, _, firstName, lastName string, role models.UserRole) (models.User, error) {
	user := models.User{ID: uuid.NewString(), Email: email, FirstName: firstName, LastName: lastName, IsActive: true, Role: role}
	r.users = append(r.users, user)
	return user, nil
}

func (r *fakeUserRepo) AuthenticateUser(context.Context, string, string) (models.User, error) {
	return models.User{}, fmt.Errorf("not implemented")
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, userID string) (models.User, error) {
	for _, user := range r.users {
		if user.ID == userID {
			return user, nil
		}
	}
	return models.User{}, fmt.Errorf("user %s not found", userID)
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, fmt.Errorf("user %s not found", email)
}

func (r *fakeUserRepo) ListByGroup(_ context.Context, group string) ([]models.User, error) {
	var out []models.User
	for _, user := range r.users {
		for _, g := range user.Groups {
			if g == group {
				out = append(out, user)
				break
			}
		}
	}
	return out, nil
}

func testUser(id, email string, groups ...string) models.User {
	return models.User{ID: id, Email: email, IsActive: true, Role: models.RoleMember, Groups: groups}
}
