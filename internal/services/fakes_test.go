package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/providers/llm"
	pgrepo "github.com/yoockh/xiaomian/internal/repositories/postgres"
	"github.com/yoockh/xiaomian/internal/utils"
)

var (
	errUpstream = errors.New("upstream down")
	testNow     = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

// fakeGateway answers per operation. Operations without a canned answer fail.
type fakeGateway struct {
	mu      sync.Mutex
	answers map[models.LLMOperation]string
	errs    map[models.LLMOperation]error
	calls   []models.LLMOperation
	reqs    map[models.LLMOperation][]llm.Request
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		answers: map[models.LLMOperation]string{},
		errs:    map[models.LLMOperation]error{},
		reqs:    map[models.LLMOperation][]llm.Request{},
	}
}

func (g *fakeGateway) on(op models.LLMOperation, answer string) *fakeGateway {
	g.answers[op] = answer
	return g
}

func (g *fakeGateway) Complete(_ context.Context, op models.LLMOperation, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, op)
	g.reqs[op] = append(g.reqs[op], req)
	if err, ok := g.errs[op]; ok {
		return "", err
	}
	if a, ok := g.answers[op]; ok {
		return a, nil
	}
	return "", errUpstream
}

func (g *fakeGateway) count(op models.LLMOperation) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == op {
			n++
		}
	}
	return n
}

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[uint]*models.User
	nextID uint
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[uint]*models.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
		if u.ID > f.nextID {
			f.nextID = u.ID
		}
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.byID {
		if e.Email == u.Email || e.Username == u.Username {
			return utils.ErrDuplicate
		}
	}
	f.nextID++
	u.ID = f.nextID
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *fakeUsers) EmailTaken(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) UsernameTaken(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) UpdatePositions(_ context.Context, id uint, positions []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return utils.ErrNotFound
	}
	u.TargetPositions = positions
	return nil
}

func (f *fakeUsers) UpdateTitle(_ context.Context, id uint, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		u.Title = title
	}
	return nil
}

type fakeInterviews struct {
	mu     sync.Mutex
	rows   map[uint]*models.Interview
	nextID uint
}

func newFakeInterviews() *fakeInterviews {
	return &fakeInterviews{rows: map[uint]*models.Interview{}}
}

func (f *fakeInterviews) Create(_ context.Context, iv *models.Interview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	iv.ID = f.nextID
	cp := *iv
	f.rows[iv.ID] = &cp
	return nil
}

func (f *fakeInterviews) GetForUser(_ context.Context, userID, id uint) (*models.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	iv, ok := f.rows[id]
	if !ok || iv.UserID != userID {
		return nil, utils.ErrNotFound
	}
	cp := *iv
	return &cp, nil
}

func (f *fakeInterviews) ListByUser(_ context.Context, userID uint, status models.InterviewStatus) ([]models.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Interview
	for _, iv := range f.rows {
		if iv.UserID == userID && (status == "" || iv.Status == status) {
			out = append(out, *iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeInterviews) RecentCompleted(ctx context.Context, userID uint, n int) ([]models.Interview, error) {
	rows, _ := f.ListByUser(ctx, userID, models.InterviewStatusCompleted)
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

func (f *fakeInterviews) Complete(_ context.Context, userID, id uint, res pgrepo.InterviewResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	iv, ok := f.rows[id]
	if !ok || iv.UserID != userID {
		return utils.ErrNotFound
	}
	if iv.Status == models.InterviewStatusCompleted {
		return utils.ErrStateConflict
	}
	total := res.TotalScore
	at := res.CompletedAt
	iv.Answers = res.Answers
	iv.AIFeedback = res.Feedback
	iv.Scores = res.Scores
	iv.Weaknesses = res.Weaknesses
	iv.TotalScore = &total
	iv.Status = models.InterviewStatusCompleted
	iv.CompletedAt = &at
	return nil
}

type fakeTasks struct {
	mu         sync.Mutex
	rows       map[uint]*models.Task
	nextID     uint
	users      *fakeUsers
	interviews *fakeInterviews
	failLink   bool
}

func newFakeTasks(users *fakeUsers, interviews *fakeInterviews) *fakeTasks {
	return &fakeTasks{rows: map[uint]*models.Task{}, users: users, interviews: interviews}
}

func (f *fakeTasks) Create(_ context.Context, tasks ...*models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tasks {
		f.nextID++
		t.ID = f.nextID
		cp := *t
		f.rows[t.ID] = &cp
	}
	return nil
}

func (f *fakeTasks) GetForUser(_ context.Context, userID, id uint) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.UserID != userID {
		return nil, utils.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) ListByUser(_ context.Context, userID uint, status models.TaskStatus) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	for _, t := range f.rows {
		if t.UserID == userID && (status == "" || t.Status == status) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeTasks) Recent(ctx context.Context, userID uint, n int) ([]models.Task, error) {
	rows, _ := f.ListByUser(ctx, userID, "")
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

func (f *fakeTasks) Delete(_ context.Context, userID, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.UserID != userID {
		return utils.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeTasks) Complete(ctx context.Context, p pgrepo.CompleteTask) (*pgrepo.CompletedTask, error) {
	f.mu.Lock()
	t, ok := f.rows[p.TaskID]
	if !ok || t.UserID != p.UserID {
		f.mu.Unlock()
		return nil, utils.ErrNotFound
	}
	if t.Status == models.TaskStatusCompleted {
		f.mu.Unlock()
		return nil, utils.ErrStateConflict
	}
	now := p.Now
	t.Status = models.TaskStatusCompleted
	t.CompletedAt = &now
	f.mu.Unlock()

	f.users.mu.Lock()
	u := f.users.byID[p.UserID]
	u.GainExperience(t.ExperienceReward)
	user := *u
	f.users.mu.Unlock()

	out := &pgrepo.CompletedTask{User: user}
	if len(p.Questions) > 0 {
		if f.failLink {
			out.InterviewErr = errors.New("insert interview: boom")
		} else {
			taskID := t.ID
			iv := &models.Interview{
				UserID:        p.UserID,
				InterviewType: models.InterviewTypeTaskBased,
				RelatedTaskID: &taskID,
				Questions:     p.Questions,
				Answers:       []string{},
				Status:        models.InterviewStatusPending,
			}
			_ = f.interviews.Create(ctx, iv)
			f.mu.Lock()
			t.RelatedInterviewID = &iv.ID
			f.mu.Unlock()
			out.Interview = iv
		}
	}
	f.mu.Lock()
	out.Task = *t
	f.mu.Unlock()
	return out, nil
}

type fakeAnnotations struct {
	notes      []models.TaskNote
	highlights []models.TaskHighlight
}

func (f *fakeAnnotations) ListNotes(_ context.Context, userID, taskID uint) ([]models.TaskNote, error) {
	var out []models.TaskNote
	for _, n := range f.notes {
		if n.UserID == userID && n.TaskID == taskID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeAnnotations) CreateNote(_ context.Context, n *models.TaskNote) error {
	n.ID = uint(len(f.notes) + 1)
	f.notes = append(f.notes, *n)
	return nil
}

func (f *fakeAnnotations) DeleteNote(_ context.Context, userID, taskID, noteID uint) error {
	for i, n := range f.notes {
		if n.ID == noteID && n.UserID == userID && n.TaskID == taskID {
			f.notes = append(f.notes[:i], f.notes[i+1:]...)
			return nil
		}
	}
	return utils.ErrNotFound
}

func (f *fakeAnnotations) ListHighlights(_ context.Context, userID, taskID uint) ([]models.TaskHighlight, error) {
	var out []models.TaskHighlight
	for _, h := range f.highlights {
		if h.UserID == userID && h.TaskID == taskID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeAnnotations) CreateHighlight(_ context.Context, h *models.TaskHighlight) error {
	h.ID = uint(len(f.highlights) + 1)
	f.highlights = append(f.highlights, *h)
	return nil
}

func (f *fakeAnnotations) DeleteHighlight(_ context.Context, userID, taskID, highlightID uint) error {
	for i, h := range f.highlights {
		if h.ID == highlightID && h.UserID == userID && h.TaskID == taskID {
			f.highlights = append(f.highlights[:i], f.highlights[i+1:]...)
			return nil
		}
	}
	return utils.ErrNotFound
}

type fakeChats struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
	messages []models.ChatMessage
	nextID   uint
}

func newFakeChats() *fakeChats {
	return &fakeChats{sessions: map[string]*models.ChatSession{}}
}

func (f *fakeChats) LatestSession(_ context.Context, userID uint, ct models.ContextType) (*models.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.ChatSession
	for _, s := range f.sessions {
		if s.UserID == userID && s.ContextType == ct && (best == nil || s.UpdatedAt.After(best.UpdatedAt)) {
			best = s
		}
	}
	if best == nil {
		return nil, utils.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeChats) GetSession(_ context.Context, sessionID string) (*models.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeChats) CreateSession(_ context.Context, s *models.ChatSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s.ID = f.nextID
	cp := *s
	f.sessions[s.SessionID] = &cp
	return nil
}

func (f *fakeChats) ListSessions(_ context.Context, userID uint, ct models.ContextType) ([]models.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChatSession
	for _, s := range f.sessions {
		if s.UserID == userID && (ct == "" || s.ContextType == ct) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeChats) RenameSession(_ context.Context, userID uint, sessionID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return utils.ErrNotFound
	}
	s.Summary = name
	return nil
}

func (f *fakeChats) AppendMessages(_ context.Context, sessionID string, now time.Time, msgs ...*models.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.nextID++
		m.ID = f.nextID
		f.messages = append(f.messages, *m)
	}
	if s, ok := f.sessions[sessionID]; ok {
		s.UpdatedAt = now
	}
	return nil
}

func (f *fakeChats) RecentMessages(_ context.Context, sessionID string, n int) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (f *fakeChats) RecentUserMessages(_ context.Context, userID uint, n int) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChatMessage
	for i := len(f.messages) - 1; i >= 0 && len(out) < n; i-- {
		m := f.messages[i]
		if m.UserID == userID && m.Role == models.MessageRoleUser {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakePrefs struct {
	mu       sync.Mutex
	rows     map[uint]*models.UserPreference
	feedback []models.UserFeedback
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{rows: map[uint]*models.UserPreference{}}
}

func (f *fakePrefs) Get(_ context.Context, userID uint) (*models.UserPreference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[userID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePrefs) Mutate(_ context.Context, userID uint, fn func(p *models.UserPreference)) (*models.UserPreference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[userID]
	if !ok {
		p = models.NewUserPreference(userID)
		f.rows[userID] = p
	}
	fn(p)
	cp := *p
	return &cp, nil
}

func (f *fakePrefs) RecordFeedback(_ context.Context, fb *models.UserFeedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, *fb)
	if _, ok := f.rows[fb.UserID]; !ok {
		f.rows[fb.UserID] = models.NewUserPreference(fb.UserID)
	}
	return nil
}

type fakeResumes struct {
	rows    []*models.Resume
	replErr error
}

func (f *fakeResumes) ReplaceActive(_ context.Context, r *models.Resume) error {
	if f.replErr != nil {
		return f.replErr
	}
	version := 1
	for _, e := range f.rows {
		if e.UserID == r.UserID {
			e.IsActive = 0
			if e.Version >= version {
				version = e.Version + 1
			}
		}
	}
	r.ID = uint(len(f.rows) + 1)
	r.IsActive = 1
	r.Version = version
	f.rows = append(f.rows, r)
	return nil
}

func (f *fakeResumes) Active(_ context.Context, userID uint) (*models.Resume, error) {
	for _, r := range f.rows {
		if r.UserID == userID && r.IsActive == 1 {
			return r, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *fakeResumes) CountActive(_ context.Context, userID uint) (int64, error) {
	var n int64
	for _, r := range f.rows {
		if r.UserID == userID && r.IsActive == 1 {
			n++
		}
	}
	return n, nil
}

type fakeKnowledge struct {
	rows     []models.KnowledgeBase
	searches int
	err      error
}

func (f *fakeKnowledge) Search(_ context.Context, positionCategory string, limit int) ([]models.KnowledgeBase, error) {
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.KnowledgeBase
	for _, r := range f.rows {
		if positionCategory == "" || r.PositionCategory == positionCategory {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeKnowledge) Create(_ context.Context, entries ...*models.KnowledgeBase) error {
	for _, e := range entries {
		e.ID = uint(len(f.rows) + 1)
		f.rows = append(f.rows, *e)
	}
	return nil
}

func (f *fakeKnowledge) Count(_ context.Context, positionCategory string) (int64, error) {
	var n int64
	for _, r := range f.rows {
		if positionCategory == "" || r.PositionCategory == positionCategory {
			n++
		}
	}
	return n, nil
}

type fakeTitles struct {
	rows  []models.TitleBenefit
	lists int
}

func (f *fakeTitles) List(context.Context) ([]models.TitleBenefit, error) {
	f.lists++
	return f.rows, nil
}

func (f *fakeTitles) SeedIfEmpty(_ context.Context, defaults []models.TitleBenefit) (bool, error) {
	if len(f.rows) > 0 {
		return false, nil
	}
	f.rows = defaults
	return true, nil
}

// memCache round-trips values through JSON like the Redis cache does.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) DelPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}
