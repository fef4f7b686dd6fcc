package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"agenda-backend/internal/models"
	"agenda-backend/internal/schedule"
)

// MemoryRepository is a process-local Store used by tests and STORE_DRIVER=memory.
// It enforces the same constraints as the database stores: unique service slugs,
// unique blocked dates, unique usernames and no overlapping active meetings.
type MemoryRepository struct {
	mu       sync.RWMutex
	services map[string]models.Service
	rules    map[string]models.AvailabilityRule
	blocked  map[string]models.BlockedDate
	meetings map[string]models.Meeting
	users    map[string]models.User
	settings *models.Settings

	locksMu   sync.Mutex
	dateLocks map[string]*sync.Mutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		services:  make(map[string]models.Service),
		rules:     make(map[string]models.AvailabilityRule),
		blocked:   make(map[string]models.BlockedDate),
		meetings:  make(map[string]models.Meeting),
		users:     make(map[string]models.User),
		dateLocks: make(map[string]*sync.Mutex),
	}
}

func (r *MemoryRepository) ListAvailabilityRules(ctx context.Context) ([]models.AvailabilityRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AvailabilityRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (r *MemoryRepository) ListBlockedDates(ctx context.Context, from, to string) ([]models.BlockedDate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.BlockedDate, 0)
	for _, b := range r.blocked {
		if from != "" && b.Date < from {
			continue
		}
		if to != "" && b.Date > to {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *MemoryRepository) ListMeetings(ctx context.Context, date string, statuses []models.MeetingStatus) ([]models.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Meeting, 0)
	for _, m := range r.meetings {
		if m.Date != date || !containsStatus(statuses, m.Status) {
			continue
		}
		out = append(out, m)
	}
	sortMeetings(out)
	return out, nil
}

func (r *MemoryRepository) GetSettings(ctx context.Context) (models.Settings, error) {
	if err := ctx.Err(); err != nil {
		return models.Settings{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.settings == nil {
		return models.Settings{}, ErrNotFound
	}
	return *r.settings, nil
}

func (r *MemoryRepository) GetService(ctx context.Context, id string) (models.Service, error) {
	if err := ctx.Err(); err != nil {
		return models.Service{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	if !ok {
		return models.Service{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) GetMeeting(ctx context.Context, id string) (models.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return models.Meeting{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meetings[id]
	if !ok {
		return models.Meeting{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepository) InsertMeeting(ctx context.Context, meeting models.Meeting) (models.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return models.Meeting{}, err
	}
	start, err := schedule.ToMinutes(meeting.Time)
	if err != nil {
		return models.Meeting{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.meetings[meeting.ID]; exists {
		return models.Meeting{}, ErrDuplicate
	}
	if IsActive(meeting.Status) {
		for _, m := range r.meetings {
			if m.Date != meeting.Date || !IsActive(m.Status) {
				continue
			}
			other, err := schedule.ToMinutes(m.Time)
			if err != nil {
				continue
			}
			if schedule.IntervalsOverlap(start, meeting.DurationMinutes, other, m.DurationMinutes) {
				return models.Meeting{}, ErrSlotNoLongerAvailable
			}
		}
	}
	r.meetings[meeting.ID] = meeting
	return meeting, nil
}

func (r *MemoryRepository) UpdateMeetingStatus(ctx context.Context, id string, from, to models.MeetingStatus, at time.Time) (models.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return models.Meeting{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meetings[id]
	if !ok {
		return models.Meeting{}, ErrNotFound
	}
	if m.Status != from {
		return models.Meeting{}, ErrStatusChanged
	}
	m.Status = to
	m.UpdatedAt = at
	r.meetings[id] = m
	return m, nil
}

func (r *MemoryRepository) WithDateLock(ctx context.Context, date string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := r.dateLock(date)
	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

func (r *MemoryRepository) dateLock(date string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	lock, ok := r.dateLocks[date]
	if !ok {
		lock = &sync.Mutex{}
		r.dateLocks[date] = lock
	}
	return lock
}

func (r *MemoryRepository) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Service, 0, len(r.services))
	for _, s := range r.services {
		if activeOnly && !s.Active {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) CreateService(ctx context.Context, service models.Service) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[service.ID]; exists {
		return ErrDuplicate
	}
	if r.slugTaken(service.Slug, service.ID) {
		return ErrDuplicate
	}
	r.services[service.ID] = service
	return nil
}

func (r *MemoryRepository) UpdateService(ctx context.Context, service models.Service) (models.Service, error) {
	if err := ctx.Err(); err != nil {
		return models.Service{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.services[service.ID]
	if !ok {
		return models.Service{}, ErrNotFound
	}
	if r.slugTaken(service.Slug, service.ID) {
		return models.Service{}, ErrDuplicate
	}
	service.CreatedAt = existing.CreatedAt
	r.services[service.ID] = service
	return service, nil
}

func (r *MemoryRepository) slugTaken(slug, exceptID string) bool {
	for id, s := range r.services {
		if id != exceptID && s.Slug == slug {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) DeleteService(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[id]; !ok {
		return ErrNotFound
	}
	delete(r.services, id)
	return nil
}

func (r *MemoryRepository) CreateAvailabilityRule(ctx context.Context, rule models.AvailabilityRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[rule.ID]; exists {
		return ErrDuplicate
	}
	r.rules[rule.ID] = rule
	return nil
}

func (r *MemoryRepository) UpdateAvailabilityRule(ctx context.Context, rule models.AvailabilityRule) (models.AvailabilityRule, error) {
	if err := ctx.Err(); err != nil {
		return models.AvailabilityRule{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rules[rule.ID]
	if !ok {
		return models.AvailabilityRule{}, ErrNotFound
	}
	rule.CreatedAt = existing.CreatedAt
	r.rules[rule.ID] = rule
	return rule, nil
}

func (r *MemoryRepository) DeleteAvailabilityRule(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return ErrNotFound
	}
	delete(r.rules, id)
	return nil
}

func (r *MemoryRepository) GetBlockedDate(ctx context.Context, id string) (models.BlockedDate, error) {
	if err := ctx.Err(); err != nil {
		return models.BlockedDate{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.blocked {
		if b.ID == id {
			return b, nil
		}
	}
	return models.BlockedDate{}, ErrNotFound
}

func (r *MemoryRepository) CreateBlockedDates(ctx context.Context, dates []models.BlockedDate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, d := range dates {
		if _, exists := r.blocked[d.Date]; exists {
			continue
		}
		r.blocked[d.Date] = d
		inserted++
	}
	return inserted, nil
}

func (r *MemoryRepository) DeleteBlockedDate(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for date, b := range r.blocked {
		if b.ID == id {
			delete(r.blocked, date)
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) SaveSettings(ctx context.Context, settings models.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = &settings
	return nil
}

func (r *MemoryRepository) ListMeetingsAdmin(ctx context.Context, filter MeetingFilter, limit, offset int64) ([]models.Meeting, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]models.Meeting, 0)
	for _, m := range r.meetings {
		if filter.Date != "" && m.Date != filter.Date {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		matched = append(matched, m)
	}
	sortMeetings(matched)
	total := int64(len(matched))
	if offset >= total {
		return []models.Meeting{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

func (r *MemoryRepository) DeleteMeeting(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.meetings[id]; !ok {
		return ErrNotFound
	}
	delete(r.meetings, id)
	return nil
}

func (r *MemoryRepository) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepository) CreateUser(ctx context.Context, user models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Username]; exists {
		return ErrDuplicate
	}
	r.users[user.Username] = user
	return nil
}

// containsStatus treats an empty list as "any status".
func containsStatus(statuses []models.MeetingStatus, s models.MeetingStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func sortMeetings(ms []models.Meeting) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Date != ms[j].Date {
			return ms[i].Date < ms[j].Date
		}
		if ms[i].Time != ms[j].Time {
			return ms[i].Time < ms[j].Time
		}
		return ms[i].ID < ms[j].ID
	})
}
