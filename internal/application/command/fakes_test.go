package command

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/leadpath/leadpath-engine/internal/domain/journey"
	"github.com/leadpath/leadpath-engine/internal/domain/member"
	"github.com/leadpath/leadpath-engine/internal/domain/shared"
)

// In-memory fakes shared by the command tests.

// ─────────────────────────────────────────────────────────────────────────────
// MEMBER REPOSITORY
// ─────────────────────────────────────────────────────────────────────────────

type fakeMemberRepo struct {
	mu      sync.Mutex
	members map[string]*member.Member
}

func newFakeMemberRepo(members ...*member.Member) *fakeMemberRepo {
	r := &fakeMemberRepo{members: make(map[string]*member.Member)}
	for _, m := range members {
		r.members[m.ID] = m
	}
	return r
}

func (r *fakeMemberRepo) Create(_ context.Context, m *member.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m.ID]; ok {
		return member.ErrMemberAlreadyExists
	}
	r.members[m.ID] = m
	return nil
}

func (r *fakeMemberRepo) GetByID(_ context.Context, id string) (*member.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, member.ErrMemberNotFound
	}
	return m, nil
}

func (r *fakeMemberRepo) GetByEmail(_ context.Context, email string) (*member.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.Email == email {
			return m, nil
		}
	}
	return nil, member.ErrMemberNotFound
}

func (r *fakeMemberRepo) Update(_ context.Context, m *member.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m.ID]; !ok {
		return member.ErrMemberNotFound
	}
	r.members[m.ID] = m
	return nil
}

func (r *fakeMemberRepo) UpdatePreferences(_ context.Context, memberID string, prefs member.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return member.ErrMemberNotFound
	}
	m.Preferences = prefs
	return nil
}

func (r *fakeMemberRepo) FindUnlockCandidates(_ context.Context, hour int) ([]*member.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*member.Member
	for _, m := range r.members {
		if m.Status == member.StatusActive && m.Preferences.UnlockHour == hour {
			out = append(out, m)
		}
	}
	sortMembers(out)
	return out, nil
}

// FindReminderCandidates is deliberately loose: it returns every active
// member with reminders on, leaving the slot check to the handler the
// way an over-broad store query would.
func (r *fakeMemberRepo) FindReminderCandidates(_ context.Context, _ int) ([]*member.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*member.Member
	for _, m := range r.members {
		if m.Status.IsEnrolled() {
			out = append(out, m)
		}
	}
	sortMembers(out)
	return out, nil
}

func (r *fakeMemberRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members), nil
}

func (r *fakeMemberRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[id]
	return ok, nil
}

func sortMembers(members []*member.Member) {
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
}

// ─────────────────────────────────────────────────────────────────────────────
// JOURNEY REPOSITORY
// ─────────────────────────────────────────────────────────────────────────────

type fakeJourneyRepo struct {
	mu       sync.Mutex
	journeys map[string]*journey.Journey
}

func newFakeJourneyRepo(journeys ...*journey.Journey) *fakeJourneyRepo {
	r := &fakeJourneyRepo{journeys: make(map[string]*journey.Journey)}
	for _, j := range journeys {
		r.journeys[j.ID] = j
	}
	return r
}

func (r *fakeJourneyRepo) Create(_ context.Context, j *journey.Journey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.journeys {
		if existing.MemberID == j.MemberID && existing.Status == journey.JourneyActive {
			return journey.ErrJourneyAlreadyActive
		}
	}
	r.journeys[j.ID] = j
	return nil
}

func (r *fakeJourneyRepo) GetByID(_ context.Context, id string) (*journey.Journey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.journeys[id]
	if !ok {
		return nil, journey.ErrJourneyNotFound
	}
	return j, nil
}

func (r *fakeJourneyRepo) GetActiveByMemberID(_ context.Context, memberID string) (*journey.Journey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.journeys {
		if j.MemberID == memberID && j.Status == journey.JourneyActive {
			return j, nil
		}
	}
	return nil, journey.ErrJourneyNotFound
}

func (r *fakeJourneyRepo) Update(_ context.Context, j *journey.Journey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.journeys[j.ID]; !ok {
		return journey.ErrJourneyNotFound
	}
	r.journeys[j.ID] = j
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// LESSON REPOSITORY
// ─────────────────────────────────────────────────────────────────────────────

type fakeLessonRepo struct {
	mu      sync.Mutex
	lessons []*journey.LessonInstance

	// beforeMark runs inside MarkAvailable before the status check,
	// simulating a concurrent writer between read and update.
	beforeMark func(li *journey.LessonInstance)
}

func newFakeLessonRepo(lessons ...*journey.LessonInstance) *fakeLessonRepo {
	return &fakeLessonRepo{lessons: lessons}
}

func (r *fakeLessonRepo) CreateBatch(_ context.Context, lessons []*journey.LessonInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lessons = append(r.lessons, lessons...)
	return nil
}

func (r *fakeLessonRepo) GetByID(_ context.Context, id string) (*journey.LessonInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, li := range r.lessons {
		if li.ID == id {
			return li, nil
		}
	}
	return nil, journey.ErrLessonNotFound
}

func (r *fakeLessonRepo) GetByMemberAndID(_ context.Context, memberID, lessonID string) (*journey.LessonInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, li := range r.lessons {
		if li.ID == lessonID && li.MemberID == memberID {
			return li, nil
		}
	}
	return nil, journey.ErrLessonNotFound
}

func (r *fakeLessonRepo) NextLocked(_ context.Context, memberID, journeyID string, category journey.Category) (*journey.LessonInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var next *journey.LessonInstance
	for _, li := range r.lessons {
		if li.MemberID != memberID || li.JourneyID != journeyID || li.Category != category {
			continue
		}
		if li.Status != journey.LessonLocked {
			continue
		}
		if next == nil || li.SequenceKey() < next.SequenceKey() {
			next = li
		}
	}
	if next == nil {
		return nil, journey.ErrLessonNotFound
	}
	return next, nil
}

func (r *fakeLessonRepo) LastCompleted(_ context.Context, memberID, journeyID string, category journey.Category) (*journey.LessonInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *journey.LessonInstance
	for _, li := range r.lessons {
		if li.MemberID != memberID || li.JourneyID != journeyID || li.Category != category {
			continue
		}
		if li.Status != journey.LessonCompleted {
			continue
		}
		if last == nil || li.SequenceKey() > last.SequenceKey() {
			last = li
		}
	}
	if last == nil {
		return nil, journey.ErrLessonNotFound
	}
	return last, nil
}

func (r *fakeLessonRepo) CountAvailable(_ context.Context, memberID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, li := range r.lessons {
		if li.MemberID == memberID && li.Status == journey.LessonAvailable {
			count++
		}
	}
	return count, nil
}

func (r *fakeLessonRepo) CountAvailableInCategory(_ context.Context, memberID, journeyID string, category journey.Category) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, li := range r.lessons {
		if li.MemberID == memberID && li.JourneyID == journeyID &&
			li.Category == category && li.Status == journey.LessonAvailable {
			count++
		}
	}
	return count, nil
}

func (r *fakeLessonRepo) CountRemaining(_ context.Context, memberID, journeyID string, category journey.Category) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, li := range r.lessons {
		if li.MemberID == memberID && li.JourneyID == journeyID &&
			li.Category == category && li.Status != journey.LessonCompleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeLessonRepo) MarkAvailable(_ context.Context, lessonID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, li := range r.lessons {
		if li.ID != lessonID {
			continue
		}
		if r.beforeMark != nil {
			r.beforeMark(li)
		}
		if li.Status != journey.LessonLocked {
			return false, nil
		}
		li.Status = journey.LessonAvailable
		li.UnlockedAt = at
		return true, nil
	}
	return false, journey.ErrLessonNotFound
}

func (r *fakeLessonRepo) Update(_ context.Context, li *journey.LessonInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.lessons {
		if existing.ID == li.ID {
			r.lessons[i] = li
			return nil
		}
	}
	return journey.ErrLessonNotFound
}

func (r *fakeLessonRepo) ListByJourney(_ context.Context, journeyID string) ([]*journey.LessonInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*journey.LessonInstance
	for _, li := range r.lessons {
		if li.JourneyID == journeyID {
			out = append(out, li)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceKey() < out[j].SequenceKey() })
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// PROGRESS REPOSITORY
// ─────────────────────────────────────────────────────────────────────────────

type fakeProgressRepo struct {
	mu      sync.Mutex
	records map[string]*member.Progress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{records: make(map[string]*member.Progress)}
}

func (r *fakeProgressRepo) Save(_ context.Context, p *member.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[p.MemberID] = p
	return nil
}

func (r *fakeProgressRepo) GetByMemberID(_ context.Context, memberID string) (*member.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[memberID]
	if !ok {
		return nil, member.ErrMemberNotFound
	}
	return p, nil
}

func (r *fakeProgressRepo) FindInactiveSince(_ context.Context, before time.Time) ([]*member.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*member.Progress
	for _, p := range r.records {
		if !p.LastActivityDate.IsZero() && p.LastActivityDate.Before(before) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// EVENT PUBLISHER / NOTIFIER / CACHE
// ─────────────────────────────────────────────────────────────────────────────

type fakePublisher struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (p *fakePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.Event, len(p.events))
	copy(out, p.events)
	return out
}

type sentMail struct {
	Recipient string
	Subject   string
	Body      string
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentMail
	failFn func(recipient string) error
}

func (n *fakeNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFn != nil {
		if err := n.failFn(recipient); err != nil {
			return err
		}
	}
	n.sent = append(n.sent, sentMail{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

func (n *fakeNotifier) sentMails() []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentMail, len(n.sent))
	copy(out, n.sent)
	return out
}

type fakePrefsCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *fakePrefsCache) Get(_ context.Context, _ string) (*member.Preferences, error) {
	return nil, member.ErrMemberNotFound
}

func (c *fakePrefsCache) Set(_ context.Context, _ string, _ member.Preferences, _ time.Duration) error {
	return nil
}

func (c *fakePrefsCache) Invalidate(_ context.Context, memberID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, memberID)
	return nil
}
